// Package xconf 提供缓存组件的配置加载与热更新。
//
// # 设计理念
//
// 配置是强类型的：Load 直接返回 *Config 结构体而非动态键值查询，
// 拼写错误在启动时暴露而不是运行时返回零值。所有字段都有可用的
// 默认值，空配置文件等价于默认配置。
//
// 基于 koanf 实现，支持 YAML 与 JSON 两种格式，
// 根据文件扩展名自动识别。时长字段使用 Go 的时长字面量
// （"30s"、"5m"），由 koanf 的默认解码钩子转换。
//
// # 快速开始
//
//	cfg, err := xconf.Load("/etc/crawler/cache.yaml")
//	if err != nil {
//	    return err
//	}
//	local, err := xlocal.New(
//	    xlocal.WithMaxSize(cfg.Local.MaxSize),
//	    xlocal.WithDefaultTTL(cfg.Local.DefaultTTL),
//	)
//
// # 热更新
//
// Watch 监视配置文件变更并在重载后回调，适合调整 TTL、
// 同步间隔这类可以运行中生效的参数：
//
//	w, err := xconf.Watch("/etc/crawler/cache.yaml", func(cfg *xconf.Config, err error) {
//	    if err != nil {
//	        slog.Warn("config reload failed", "error", err)
//	        return
//	    }
//	    applyConfig(cfg)
//	})
//	defer w.Stop()
//	w.StartAsync()
package xconf
