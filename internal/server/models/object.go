// Package models defines the artivault domain types persisted in the database.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/artivault/internal/common"
)

// ObjectType names an object variant. The generic "object" type matches every variant.
type ObjectType string

const (
	TypeObject   ObjectType = "object"
	TypeFile     ObjectType = "file"
	TypeConfig   ObjectType = "config"
	TypeTextBlob ObjectType = "text_blob"
)

// ParseObjectType validates s. The legacy "blob" alias maps to text_blob.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeObject, TypeFile, TypeConfig, TypeTextBlob:
		return t, nil
	case "blob":
		return TypeTextBlob, nil
	}
	return "", common.BadRequestf("unknown object type %q", s)
}

// Object is a stored artifact. Exactly one of File, Config or TextBlob is set
// for a concrete variant.
type Object struct {
	ID         int64      `json:"-"`
	Type       ObjectType `json:"type"`
	DHash      string     `json:"id"`
	UploadTime time.Time  `json:"upload_time"`
	LastSeen   time.Time  `json:"last_seen"`

	File     *File     `json:"file,omitempty"`
	Config   *Config   `json:"config,omitempty"`
	TextBlob *TextBlob `json:"text_blob,omitempty"`

	Parents  []ObjectRef `json:"parents,omitempty"`
	Children []ObjectRef `json:"children,omitempty"`
}

// ObjectRef is the short form used in relation listings.
type ObjectRef struct {
	Type       ObjectType `json:"type"`
	DHash      string     `json:"id"`
	UploadTime time.Time  `json:"upload_time"`
}

// Ref returns the short form of o.
func (o *Object) Ref() ObjectRef {
	return ObjectRef{Type: o.Type, DHash: o.DHash, UploadTime: o.UploadTime}
}

// File is the payload metadata of a file object.
type File struct {
	Name   string `json:"file_name"`
	Size   int64  `json:"file_size"`
	Type   string `json:"file_type"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
	SHA512 string `json:"sha512"`
	CRC32  string `json:"crc32"`
}

// Config is a structured malware configuration.
type Config struct {
	Family     string         `json:"family"`
	ConfigType string         `json:"config_type"`
	Cfg        map[string]any `json:"cfg"`
}

// TextBlob is a named piece of text such as a script or a dump fragment.
type TextBlob struct {
	Name    string `json:"blob_name"`
	Type    string `json:"blob_type"`
	Size    int64  `json:"blob_size"`
	Content string `json:"content"`
}

// Relations lists visible parents and children of an object.
type Relations struct {
	Parents  []ObjectRef `json:"parents"`
	Children []ObjectRef `json:"children"`
}

// ConfigStat aggregates visible configs of one family.
type ConfigStat struct {
	Family     string    `json:"family"`
	Count      int64     `json:"count"`
	LastUpload time.Time `json:"last_upload"`
}
