package xremote

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis v9 内部 goroutine：连接池 tryDial 和 circuit breaker cleanupLoop
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).tryDial"),
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/maintnotifications.(*CircuitBreakerManager).cleanupLoop"),
		// go-redis 的部分内部 goroutine（连接池健康检查、重连退避）
		// 在 Client.Close() 后可能仍处于 time.Sleep 状态。
		goleak.IgnoreTopFunction("time.Sleep"),
	)
}
