package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 参数（改动会导致存量密码校验失败，勿动）
const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

// HashPassword 生成 "HEX(hash)-HEX(salt)" 格式的加盐哈希，盐每次随机
func HashPassword(pw string) string {
	salt := make([]byte, saltSize)
	_, _ = rand.Read(salt)
	key := pbkdf2.Key([]byte(pw), salt, iterations, keySize, sha512.New)
	return strings.ToUpper(hex.EncodeToString(key)) + "-" + strings.ToUpper(hex.EncodeToString(salt))
}

// CheckPassword 校验密码；格式不合法一律返回 false，不抛错，比较走常数时间
func CheckPassword(pw, encoded string) bool {
	parts := strings.Split(encoded, "-")
	if len(parts) != 2 {
		return false
	}
	hash, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	key := pbkdf2.Key([]byte(pw), salt, iterations, keySize, sha512.New)
	return subtle.ConstantTimeCompare(hash, key) == 1
}
