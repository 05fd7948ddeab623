// Package device 构建每个运行实例唯一的设备标识，hub 以此把所有传感器归到同一个设备下。
package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// idPrefix 所有 unique_id 的公共前缀
const idPrefix = "system_monitor_pro"

// Identity 设备标识，创建后只读
type Identity struct {
	id               string
	name             string
	model            string
	manufacturer     string
	swVersion        string
	hwVersion        string
	configurationURL string
}

// Options 构建 Identity 所需的输入
type Options struct {
	Hostname     string
	Product      string
	Version      string
	Model        string
	OSVersion    string
	TopicPrefix  string
	Manufacturer string
}

// New 由主机名、产品名与版本号组合出设备标识
func New(opts Options) Identity {
	host := opts.Hostname
	if host == "" {
		host = "unknown"
	}
	manufacturer := opts.Manufacturer
	if manufacturer == "" {
		manufacturer = opts.Product
	}
	model := opts.Model
	if model == "" {
		model = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
	}
	id := Identity{
		id:           idPrefix + "_" + Sanitize(host),
		name:         fmt.Sprintf("System Monitor (%s)", host),
		model:        model,
		manufacturer: manufacturer,
		swVersion:    opts.Version,
		hwVersion:    opts.OSVersion,
	}
	if opts.TopicPrefix != "" {
		id.configurationURL = fmt.Sprintf("homeassistant://hassio/addon/%s/info", opts.TopicPrefix)
	}
	return id
}

func (i Identity) ID() string               { return i.id }
func (i Identity) Name() string             { return i.name }
func (i Identity) Model() string            { return i.model }
func (i Identity) Manufacturer() string     { return i.manufacturer }
func (i Identity) SWVersion() string        { return i.swVersion }
func (i Identity) HWVersion() string        { return i.hwVersion }
func (i Identity) ConfigurationURL() string { return i.configurationURL }

// Sanitize 把主机名转换成可用于 unique_id 与主题的形式（小写，仅 [a-z0-9_]）
func Sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// DetectModel 读取单板机型号（/proc/device-tree/model），否则回退到平台信息
func DetectModel(ctx context.Context) string {
	if data, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		model := strings.TrimSpace(string(bytes.TrimRight(data, "\x00")))
		if model != "" {
			return model
		}
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", info.OS, info.KernelArch))
}

// DetectOSVersion 读取 /etc/os-release 的 PRETTY_NAME，否则回退到平台信息
func DetectOSVersion(ctx context.Context) string {
	if f, err := os.Open("/etc/os-release"); err == nil {
		defer f.Close()
		if name := parseOSRelease(f); name != "" {
			return name
		}
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return runtime.GOOS
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion))
}

func parseOSRelease(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}
