package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pw   string
	}{
		{name: "simple", pw: "Secret1"},
		{name: "empty", pw: ""},
		{name: "unicode", pw: "pāss wörd 密码"},
		{name: "long", pw: strings.Repeat("x", 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := HashPassword(tt.pw)
			require.NotEmpty(t, enc)
			assert.True(t, CheckPassword(tt.pw, enc))
			assert.False(t, CheckPassword(tt.pw+"!", enc))
		})
	}
}

func TestHashPassword_Format(t *testing.T) {
	enc := HashPassword("Secret1")
	parts := strings.Split(enc, "-")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], keySize*2)
	assert.Len(t, parts[1], saltSize*2)
}

func TestHashPassword_FreshSalt(t *testing.T) {
	// 同一明文两次哈希必须不同
	a := HashPassword("Secret1")
	b := HashPassword("Secret1")
	assert.NotEqual(t, a, b)
	assert.True(t, CheckPassword("Secret1", a))
	assert.True(t, CheckPassword("Secret1", b))
}

func TestCheckPassword_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "no separator", encoded: "DEADBEEF"},
		{name: "too many separators", encoded: "AA-BB-CC"},
		{name: "not hex", encoded: "zz-yy"},
		{name: "salt not hex", encoded: "DEADBEEF-nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, CheckPassword("Secret1", tt.encoded))
			})
		})
	}
}

func TestCheckPassword_CrossPasswords(t *testing.T) {
	encA := HashPassword("passwordA")
	assert.False(t, CheckPassword("passwordB", encA))
}
