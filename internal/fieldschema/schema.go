// Package fieldschema 维护模板绑定的有序字段列表，并在提交前校验模板。
package fieldschema

import (
	"errors"
	"fmt"

	"workflowhr/internal/placeholder"
)

// FieldTag 将占位符 tag 与显示标签绑定。
type FieldTag struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Attribute 是 Update 可修改的 FieldTag 属性。
type Attribute string

const (
	AttrTag   Attribute = "tag"
	AttrLabel Attribute = "label"
)

const (
	DefaultTag   = "employee_name"
	DefaultLabel = "Employee Name"
)

var (
	ErrMinimumFields    = errors.New("a template must keep at least one field")
	ErrIndexOutOfRange  = errors.New("field index out of range")
	ErrUnknownAttribute = errors.New("unknown field attribute")
)

// Schema 是正在编辑的模板的字段列表，顺序即占位符选择器的顺序。
type Schema struct {
	fields []FieldTag
}

// New 返回只含默认员工姓名字段的列表。
func New() *Schema {
	return &Schema{fields: []FieldTag{{Tag: DefaultTag, Label: DefaultLabel}}}
}

// FromFields 复制字段；为空时返回默认列表。
func FromFields(fields []FieldTag) *Schema {
	if len(fields) == 0 {
		return New()
	}
	cp := make([]FieldTag, len(fields))
	copy(cp, fields)
	return &Schema{fields: cp}
}

// Fields 返回字段列表的副本。
func (s *Schema) Fields() []FieldTag {
	cp := make([]FieldTag, len(s.fields))
	copy(cp, s.fields)
	return cp
}

func (s *Schema) Len() int { return len(s.fields) }

// Add 追加一个空字段。
func (s *Schema) Add() {
	s.fields = append(s.fields, FieldTag{})
}

// Remove 删除 index 处的字段，至少保留一个。
func (s *Schema) Remove(index int) error {
	if index < 0 || index >= len(s.fields) {
		return fmt.Errorf("remove field %d: %w", index, ErrIndexOutOfRange)
	}
	if len(s.fields) == 1 {
		return ErrMinimumFields
	}
	s.fields = append(s.fields[:index], s.fields[index+1:]...)
	return nil
}

// Update 修改 index 处字段的一个属性。修改标签会重新生成 tag，覆盖手工编辑。
func (s *Schema) Update(index int, attr Attribute, value string) error {
	if index < 0 || index >= len(s.fields) {
		return fmt.Errorf("update field %d: %w", index, ErrIndexOutOfRange)
	}
	switch attr {
	case AttrTag:
		s.fields[index].Tag = value
	case AttrLabel:
		s.fields[index].Label = value
		s.fields[index].Tag = placeholder.DeriveTag(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	return nil
}

// Labels 返回 tag 到标签的映射。
func (s *Schema) Labels() map[string]string {
	return Labels(s.fields)
}

// Values 返回生成文档用的值表，每个字段一项空值。
func (s *Schema) Values() map[string]string {
	return EmptyValues(s.fields)
}

// Labels 返回 fields 中 tag 到标签的映射。
func Labels(fields []FieldTag) map[string]string {
	labels := make(map[string]string, len(fields))
	for _, f := range fields {
		labels[f.Tag] = f.Label
	}
	return labels
}

// EmptyValues 为每个字段 tag 返回一项空值。
func EmptyValues(fields []FieldTag) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Tag] = ""
	}
	return values
}

// Bind 用 supplied 填充新的值表：非字段 tag 的键丢弃，未提供的字段为空。
func Bind(fields []FieldTag, supplied map[string]string) map[string]string {
	values := EmptyValues(fields)
	for tag := range values {
		if v, ok := supplied[tag]; ok {
			values[tag] = v
		}
	}
	return values
}
