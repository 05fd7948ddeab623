// Package sensor 定义采集器与发布器之间共享的值类型：Metric（一次观测）与 Descriptor（传感器元数据）。
package sensor

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPrecision 数值默认保留的小数位数
const DefaultPrecision = 2

// 布尔值在状态主题上的两种取值
const (
	PayloadOn  = "on"
	PayloadOff = "off"
)

// Class 传感器类别（决定实体类型与 state_class）
type Class int

const (
	ClassMeasurement Class = iota // 瞬时测量值
	ClassBinary                   // 二值（binary_sensor）
	ClassText                     // 文本
	ClassCounter                  // 单调递增计数器
)

func (c Class) String() string {
	switch c {
	case ClassMeasurement:
		return "measurement"
	case ClassBinary:
		return "binary"
	case ClassText:
		return "text"
	case ClassCounter:
		return "counter"
	default:
		return "unknown"
	}
}

// EntityKind 返回 hub 侧的实体类型（discovery 主题的一部分）
func (c Class) EntityKind() string {
	if c == ClassBinary {
		return "binary_sensor"
	}
	return "sensor"
}

// StateClass 返回 hub 侧的 state_class，文本与二值传感器没有
func (c Class) StateClass() string {
	switch c {
	case ClassMeasurement:
		return "measurement"
	case ClassCounter:
		return "total_increasing"
	default:
		return ""
	}
}

// Descriptor 描述一个 metric key 在 hub 上如何呈现，启动后不可变
type Descriptor struct {
	Key         string
	Name        string
	Class       Class
	Unit        string
	Icon        string
	DeviceClass string // hub device_class，如 temperature / data_size
	Category    string // entity_category，如 diagnostic
	Precision   *int   // suggested_display_precision
	Attributes  bool   // 是否发布 attributes 主题
	Retain      bool   // 状态是否保留（IP、系统信息这类慢变量）
}

// Precision 返回 p 的指针，用于 Descriptor.Precision
func Precision(p int) *int {
	return &p
}

// Kind 值的类型
type Kind int

const (
	KindNumber Kind = iota
	KindBool
	KindText
)

// Value 数值、布尔或短文本
type Value struct {
	kind      Kind
	num       float64
	precision int
	b         bool
	text      string
}

// Number 带显示精度的数值
func Number(v float64, precision int) Value {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return Value{kind: KindNumber, num: v, precision: precision}
}

// Int 整数值（精度为 0）
func Int(v int64) Value {
	return Value{kind: KindNumber, num: float64(v), precision: 0}
}

// Bool 布尔值
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Text 文本值
func Text(v string) Value {
	return Value{kind: KindText, text: v}
}

func (v Value) Kind() Kind { return v.kind }

// Float 返回数值形式；布尔值 true=1/false=0，文本尝试解析，失败返回 ok=false
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Truth 布尔值；文本 "on"/"true" 视为 true
func (v Value) Truth() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindText:
		s := strings.ToLower(strings.TrimSpace(v.text))
		return s == PayloadOn || s == "true"
	default:
		return false
	}
}

// String 状态主题上的文本格式：固定精度数值、on/off、原样文本
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', v.precision, 64)
	case KindBool:
		if v.b {
			return PayloadOn
		}
		return PayloadOff
	default:
		return v.text
	}
}

// MarshalJSON 数值按精度输出为 JSON number，其余为字符串/布尔
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(v.String()), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	default:
		return []byte(strconv.Quote(v.text)), nil
	}
}

// Metric 一次观测，生成后不再修改
type Metric struct {
	Key        string
	Value      Value
	Unit       string
	Attributes map[string]any

	// Family/SubKey 用于动态子键（磁盘挂载点、CPU 核心）的告警路由
	Family string
	SubKey string
}
