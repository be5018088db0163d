package grpc

import (
	"time"

	"github.com/dmitrijs2005/artivault/internal/server/models"
	"github.com/dmitrijs2005/artivault/internal/server/services"
)

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type FileUpload struct {
	Name    string `json:"file_name"`
	Content []byte `json:"content"`
}

type ConfigUpload struct {
	Family     string         `json:"family"`
	ConfigType string         `json:"config_type"`
	Cfg        map[string]any `json:"cfg"`
}

type TextBlobUpload struct {
	Name    string `json:"blob_name"`
	Type    string `json:"blob_type"`
	Content string `json:"content"`
}

// UploadRequest carries exactly one payload matching Type.
type UploadRequest struct {
	Type       string           `json:"type"`
	File       *FileUpload      `json:"file,omitempty"`
	Config     *ConfigUpload    `json:"config,omitempty"`
	TextBlob   *TextBlobUpload  `json:"text_blob,omitempty"`
	Parent     string           `json:"parent,omitempty"`
	UploadAs   string           `json:"upload_as,omitempty"`
	Metakeys   []models.Metakey `json:"metakeys,omitempty"`
	UploadTime *time.Time       `json:"upload_time,omitempty"`
}

type UploadResponse struct {
	Object  *models.Object `json:"object"`
	Created bool           `json:"created"`
}

// ObjectRequest addresses one object by variant and identifier.
type ObjectRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ObjectResponse struct {
	Object *models.Object `json:"object"`
}

type SearchRequest struct {
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	OlderThan string `json:"older_than,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"count,omitempty"`
}

type SearchResponse struct {
	Objects []models.Object `json:"objects"`
}

type AddChildRequest struct {
	Type   string `json:"type"`
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

type ShareRequest struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Group string `json:"group"`
}

type SharesResponse struct {
	Shares []models.AccessGrant `json:"shares"`
}

type ConfigStatsRequest struct {
	Range string `json:"range"`
}

type ConfigStatsResponse struct {
	Families []models.ConfigStat `json:"families"`
}

type DownloadURLRequest struct {
	ID string `json:"id"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

type AddAttributeRequest struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type AddAttributeResponse struct {
	Created bool `json:"created"`
}

type GetAttributesRequest struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Hidden bool   `json:"hidden,omitempty"`
}

type AttributesResponse struct {
	Metakeys []models.Metakey `json:"metakeys"`
}

type ListDefinitionsRequest struct {
	Access string `json:"access"`
}

type DefinitionsResponse struct {
	Metakeys []models.MetakeyDefinition `json:"metakeys"`
}

type DefinitionRequest struct {
	Key string `json:"key"`
}

type DefinitionResponse struct {
	Metakey *services.DefinitionDetails `json:"metakey"`
}

type PermissionRequest struct {
	Key     string `json:"key"`
	Group   string `json:"group"`
	CanRead bool   `json:"can_read,omitempty"`
	CanSet  bool   `json:"can_set,omitempty"`
}
