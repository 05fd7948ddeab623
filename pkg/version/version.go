package version

// 构建时通过 -ldflags "-X github.com/system-monitor-pro/pkg/version.Version=..." 覆盖
var (
	Version = "0.3.0"
	Commit  = "dev"
)

// Product 产品名（设备 manufacturer 与 banner 使用）
const Product = "System Monitor Pro"
