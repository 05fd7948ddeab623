package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Validate 日志配置校验：tag 之外再检查保留策略与目录可写
func (l *ZapLogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return fmt.Errorf("log config invalid: %w", err)
	}
	// rotatelogs 的 max_age 与 rotation count 只能二选一，都为 0 时日志永不清理
	if l.MaxAge == 0 && l.MaxBackup == 0 {
		return errors.New("log.max_age and log.max_backup cannot both be 0")
	}
	dir, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("log.path %q: %w", l.Path, err)
	}
	if err := writableDir(dir); err != nil {
		return fmt.Errorf("log.path %q is not writable: %w", l.Path, err)
	}
	return nil
}

// writableDir 不存在时创建目录，并写入探测文件确认有写权限
func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
