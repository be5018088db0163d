package search

import (
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindHash
	kindInt
	kindDate
	kindType
)

type column struct {
	expr string
	kind fieldKind
}

// Table aliases used by the listing statement: o=objects, f=files, c=configs, b=text_blobs.
var genericFields = map[string]column{
	"dhash":       {"o.dhash", kindHash},
	"type":        {"o.type", kindType},
	"upload_time": {"o.upload_time", kindDate},
	"last_seen":   {"o.last_seen", kindDate},
}

var variantFields = map[models.ObjectType]map[string]column{
	models.TypeFile: {
		"file_name": {"f.file_name", kindString},
		"file_size": {"f.file_size", kindInt},
		"file_type": {"f.file_type", kindString},
		"md5":       {"f.md5", kindHash},
		"sha1":      {"f.sha1", kindHash},
		"sha256":    {"f.sha256", kindHash},
		"sha512":    {"f.sha512", kindHash},
		"crc32":     {"f.crc32", kindHash},
	},
	models.TypeConfig: {
		"family":      {"c.family", kindString},
		"config_type": {"c.config_type", kindString},
	},
	models.TypeTextBlob: {
		"blob_name": {"b.blob_name", kindString},
		"blob_type": {"b.blob_type", kindString},
		"blob_size": {"b.blob_size", kindInt},
		"content":   {"b.content", kindString},
	},
}

const (
	prefixMeta      = "meta."
	prefixAttribute = "attribute."
	prefixCfg       = "cfg."
	fieldParent     = "parent"
	fieldChild      = "child"
)

func lookupColumn(variant models.ObjectType, field string) (column, bool) {
	if col, ok := genericFields[field]; ok {
		return col, true
	}
	col, ok := variantFields[variant][field]
	return col, ok
}
