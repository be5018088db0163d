package services

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"net/http"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// fileDigests fills every digest of a file payload and sniffs its content type.
type fileDigests struct {
	md5, sha1, sha256, sha512, crc32, contentType string
}

func digestFile(b []byte) fileDigests {
	m := md5.Sum(b)
	s1 := sha1.Sum(b)
	s5 := sha512.Sum512(b)
	return fileDigests{
		md5:         hex.EncodeToString(m[:]),
		sha1:        hex.EncodeToString(s1[:]),
		sha256:      sha256Hex(b),
		sha512:      hex.EncodeToString(s5[:]),
		crc32:       fmt.Sprintf("%08x", crc32.ChecksumIEEE(b)),
		contentType: http.DetectContentType(b),
	}
}

// canonicalJSON encodes cfg with object keys sorted at every level.
func canonicalJSON(cfg map[string]any) ([]byte, error) {
	return json.Marshal(cfg)
}
