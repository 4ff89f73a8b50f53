package account

// Message 的固定取值，控制器层按它映射 HTTP 语义的错误码
const (
	MsgBadRequest   = "BadRequest"
	MsgConflict     = "Conflict"
	MsgUnauthorized = "Unauthorized"
	MsgError        = "Error"
)

// Result 生命周期操作的统一出参：失败必带 Errors，成功永不带
type Result[T any] struct {
	Succeeded bool     `json:"succeeded"`
	Message   string   `json:"message"`
	Errors    []string `json:"errors,omitempty"`
	Data      T        `json:"data,omitempty"`
}

func ok[T any](msg string, data T) Result[T] {
	return Result[T]{Succeeded: true, Message: msg, Data: data}
}

func fail[T any](msg string, errs ...string) Result[T] {
	if len(errs) == 0 {
		errs = []string{msg}
	}
	return Result[T]{Succeeded: false, Message: msg, Errors: errs}
}
