package xremote_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/cachekit/pkg/cache/xremote"
)

func Example() {
	mr, _ := miniredis.Run()
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := xremote.New(client,
		xremote.WithKeyPrefix("crawler:"),
		xremote.WithDefaultTTL(10*time.Minute),
	)
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	ctx := context.Background()
	_ = cache.Set(ctx, "note:1024", "hello")

	if v, ok, _ := cache.Get(ctx, "note:1024"); ok {
		fmt.Println(v)
	}
	// Output: hello
}

func ExampleCache_TryLock() {
	mr, _ := miniredis.Run()
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, _ := xremote.New(client)
	defer cache.Close()

	ctx := context.Background()
	lock, err := cache.TryLock(ctx, "job:refresh")
	if err != nil {
		panic(err)
	}
	if lock == nil {
		fmt.Println("lock held elsewhere")
		return
	}
	defer func() { _ = lock.Unlock(ctx) }()

	fmt.Println("acquired", lock.Name())
	// Output: acquired job:refresh
}

func ExampleCache_Increment() {
	mr, _ := miniredis.Run()
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, _ := xremote.New(client)
	defer cache.Close()

	ctx := context.Background()
	n, _ := cache.Increment(ctx, "crawl:count", 1)
	n, _ = cache.Increment(ctx, "crawl:count", 2)
	fmt.Println(n)
	// Output: 3
}
