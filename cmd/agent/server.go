package agent

import (
	"github.com/spf13/cobra"

	"github.com/system-monitor-pro/pkg/config"
)

var defaultCfg = config.NewDefaultConfig()

// flag 名与 mapstructure key 一致（下划线），由 config.LoadConfigWithCli 绑定到 viper
func initServerFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Bool("server.enable", defaultCfg.Server.Enable, "-> Enable HTTP status server (启动状态服务)")
	f.String("server.addr", defaultCfg.Server.Addr, "-> HTTP listening address (HTTP监听地址)")
	f.Duration("server.read_timeout", defaultCfg.Server.ReadTimeout, "-> Read timeout duration (读取超时时间)")
	f.Duration("server.write_timeout", defaultCfg.Server.WriteTimeout, "-> Write timeout duration (写入超时时间)")
	f.Duration("server.idle_timeout", defaultCfg.Server.IdleTimeout, "-> Idle connection timeout duration (空闲连接超时时间)")
}
