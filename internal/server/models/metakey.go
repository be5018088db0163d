package models

import (
	"net/url"
	"strings"
)

// MetakeyDefinition declares an attribute key. Keys are stored case-folded.
type MetakeyDefinition struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	URLTemplate string `json:"url_template"`
	Hidden      bool   `json:"hidden"`
}

// MetakeyPermission grants a group read and/or set access to a key.
type MetakeyPermission struct {
	Key       string `json:"key"`
	GroupID   int64  `json:"-"`
	GroupName string `json:"group_name"`
	CanRead   bool   `json:"can_read"`
	CanSet    bool   `json:"can_set"`
}

// Metakey is an attribute value attached to an object.
type Metakey struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	URL   string `json:"url,omitempty"`
}

// NormalizeKey case-folds an attribute key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// RenderURL substitutes $value in the definition's template.
func (d *MetakeyDefinition) RenderURL(value string) string {
	if d.URLTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(d.URLTemplate, "$value", url.QueryEscape(value))
}
