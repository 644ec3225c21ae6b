package xsync_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/cachekit/pkg/cache/xlocal"
	"github.com/omeyang/cachekit/pkg/cache/xremote"
	"github.com/omeyang/cachekit/pkg/cache/xsync"
)

func Example() {
	mr, _ := miniredis.Run()
	defer mr.Close()

	local, _ := xlocal.New(xlocal.WithMaxSize(1000))
	defer local.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	remote, _ := xremote.New(client, xremote.WithDefaultTTL(10*time.Minute))
	defer remote.Close()

	mgr, err := xsync.New(local, remote,
		xsync.WithSyncInterval(30*time.Second),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		panic(err)
	}
	defer mgr.Stop()

	// 写入同时落远端与本地，后续读取走本地快路径
	_ = mgr.Set(ctx, "note:1024", "hello")

	v, ok, _ := mgr.Get(ctx, "note:1024")
	fmt.Println(ok, v)

	st, _ := mgr.State("note:1024")
	fmt.Println(st.State)
	// Output:
	// true hello
	// synced
}
