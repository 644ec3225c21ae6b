package xremote

import "encoding/json"

// Codec 定义值的编解码器接口。
// 写入时编码为字节，读取时解码回调用方可用的值。
//
// 实现必须是并发安全的。默认实现为 [JSONCodec]。
type Codec interface {
	// Marshal 将值编码为字节。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节解码为值。
	// 返回值的动态类型由具体编解码器决定。
	Unmarshal(data []byte) (any, error)
}

// JSONCodec 是默认的 JSON 编解码器。
//
// 解码遵循 encoding/json 对 any 的约定：对象为 map[string]any、
// 数组为 []any、数字为 float64。调用方跨进程读取时应按这些类型断言。
type JSONCodec struct{}

// Marshal 实现 Codec。
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal 实现 Codec。
func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
