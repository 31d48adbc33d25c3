package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Manifest is the subset of imsmanifest.xml the bank importer reads.
type Manifest struct {
	Resources []ManifestResource
}

type ManifestResource struct {
	Identifier string
	Href       string
	Type       string
	Competency string
	Level      string
}

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string      `xml:"identifier,attr"`
	Href       string      `xml:"href,attr"`
	Type       string      `xml:"type,attr"`
	Metadata   imsMetadata `xml:"metadata"`
}
type imsMetadata struct {
	Competency string `xml:"competency"`
	Level      string `xml:"level"`
}

// maxEntry bounds a single decompressed file in an uploaded package.
const maxEntry = 4 << 20

var ErrNoManifest = errors.New("imsmanifest.xml not found")

// Package is an opened content package: its manifest and the raw item files.
type Package struct {
	Manifest Manifest
	files    map[string][]byte
}

// Open reads a zipped content package fully in memory.
func Open(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	files := map[string][]byte{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		files[path.Clean(f.Name)] = b
	}
	var raw []byte
	for _, name := range []string{"imsmanifest.xml", "manifest.xml"} {
		if b, ok := files[name]; ok {
			raw = b
			break
		}
	}
	if raw == nil {
		return nil, ErrNoManifest
	}
	mf, err := parseManifest(raw)
	if err != nil {
		return nil, err
	}
	return &Package{Manifest: mf, files: files}, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, maxEntry+1))
	if err != nil {
		return nil, err
	}
	if n > maxEntry {
		return nil, errors.New("entry too large")
	}
	return buf.Bytes(), nil
}

func parseManifest(b []byte) (Manifest, error) {
	var mf imsManifest
	if err := xml.Unmarshal(b, &mf); err != nil {
		return Manifest{}, fmt.Errorf("manifest: %w", err)
	}
	var out Manifest
	for _, r := range mf.Resources {
		href := strings.TrimSpace(r.Href)
		if !strings.HasSuffix(strings.ToLower(href), ".xml") || strings.Contains(strings.ToLower(href), "manifest") {
			continue
		}
		out.Resources = append(out.Resources, ManifestResource{
			Identifier: r.Identifier,
			Href:       path.Clean(href),
			Type:       r.Type,
			Competency: strings.TrimSpace(r.Metadata.Competency),
			Level:      strings.TrimSpace(r.Metadata.Level),
		})
	}
	return out, nil
}

// File returns a packaged file by its manifest href.
func (p *Package) File(href string) ([]byte, bool) {
	b, ok := p.files[path.Clean(href)]
	return b, ok
}
