package nuget

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-registry/pkg/simpleregistry"
)

// FeedContentType is the media type of OData Atom feeds
const FeedContentType = "application/atom+xml;type=feed;charset=utf-8"

const (
	atomNamespace      = "http://www.w3.org/2005/Atom"
	dataNamespace      = "http://schemas.microsoft.com/ado/2007/08/dataservices"
	metadataNamespace  = "http://schemas.microsoft.com/ado/2007/08/dataservices/metadata"
	packagesFeedTitle  = "Packages"
	packageContentType = "application/zip"
)

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	XmlnsD  string      `xml:"xmlns:d,attr"`
	XmlnsM  string      `xml:"xmlns:m,attr"`
	Base    string      `xml:"xml:base,attr"`
	ID      string      `xml:"id"`
	Title   atomText    `xml:"title"`
	Updated string      `xml:"updated"`
	Link    atomLink    `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomLink struct {
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr,omitempty"`
	Href  string `xml:"href,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Src  string `xml:"src,attr"`
}

type atomEntry struct {
	ID         string       `xml:"id"`
	Title      atomText     `xml:"title"`
	Summary    atomText     `xml:"summary"`
	Updated    string       `xml:"updated"`
	Author     atomAuthor   `xml:"author"`
	Link       atomLink     `xml:"link"`
	Content    atomContent  `xml:"content"`
	Properties packageProps `xml:"m:properties"`
}

type typed struct {
	Type  string `xml:"m:type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type packageProps struct {
	ID                      string `xml:"d:Id"`
	Version                 string `xml:"d:Version"`
	NormalizedVersion       string `xml:"d:NormalizedVersion"`
	Title                   string `xml:"d:Title"`
	Authors                 string `xml:"d:Authors"`
	Description             string `xml:"d:Description"`
	Summary                 string `xml:"d:Summary"`
	Tags                    string `xml:"d:Tags"`
	ProjectURL              string `xml:"d:ProjectUrl"`
	LicenseURL              string `xml:"d:LicenseUrl"`
	Created                 typed  `xml:"d:Created"`
	Published               typed  `xml:"d:Published"`
	LastUpdated             typed  `xml:"d:LastUpdated"`
	IsLatestVersion         typed  `xml:"d:IsLatestVersion"`
	IsAbsoluteLatestVersion typed  `xml:"d:IsAbsoluteLatestVersion"`
	IsPrerelease            typed  `xml:"d:IsPrerelease"`
	DownloadCount           typed  `xml:"d:DownloadCount"`
	PackageSize             typed  `xml:"d:PackageSize"`
	PackageHash             string `xml:"d:PackageHash"`
	PackageHashAlgorithm    string `xml:"d:PackageHashAlgorithm"`
}

func edmBool(v bool) typed {
	return typed{Type: "Edm.Boolean", Value: strconv.FormatBool(v)}
}

func edmTime(t time.Time) typed {
	return typed{Type: "Edm.DateTime", Value: t.UTC().Format("2006-01-02T15:04:05.999Z")}
}

// latestFlags marks the newest stable and newest overall version of each id
func latestFlags(records []*simpleregistry.ArtifactRecord) (latest, absolute map[string]bool) {
	latest = make(map[string]bool)
	absolute = make(map[string]bool)
	bestStable := make(map[string]*simpleregistry.ArtifactRecord)
	bestAny := make(map[string]*simpleregistry.ArtifactRecord)
	for _, rec := range records {
		key := strings.ToLower(rec.Name)
		if cur, ok := bestAny[key]; !ok || simpleregistry.CompareVersions(rec.Version, cur.Version) > 0 {
			bestAny[key] = rec
		}
		if simpleregistry.IsPrerelease(rec.Version) {
			continue
		}
		if cur, ok := bestStable[key]; !ok || simpleregistry.CompareVersions(rec.Version, cur.Version) > 0 {
			bestStable[key] = rec
		}
	}
	for _, rec := range bestStable {
		latest[versionKey(rec)] = true
	}
	for _, rec := range bestAny {
		absolute[versionKey(rec)] = true
	}
	return latest, absolute
}

func versionKey(rec *simpleregistry.ArtifactRecord) string {
	return strings.ToLower(rec.Name) + "@" + rec.Version
}

// writeFeed renders records as the OData v2 package feed. all holds every
// version of the listed ids so the latest flags are accurate on a page.
func writeFeed(w io.Writer, baseURL string, page, all []*simpleregistry.ArtifactRecord, now time.Time) error {
	base := strings.TrimRight(baseURL, "/") + "/"
	latest, absolute := latestFlags(all)

	feed := atomFeed{
		Xmlns:   atomNamespace,
		XmlnsD:  dataNamespace,
		XmlnsM:  metadataNamespace,
		Base:    base,
		ID:      base + "Search",
		Title:   atomText{Type: "text", Value: packagesFeedTitle},
		Updated: now.UTC().Format(time.RFC3339),
		Link:    atomLink{Rel: "self", Title: packagesFeedTitle, Href: "Search"},
	}

	for _, rec := range page {
		entryID := fmt.Sprintf("Packages(Id='%s',Version='%s')", rec.Name, rec.Version)
		meta := rec.Metadata
		title := meta[simpleregistry.MetaTitle]
		if title == "" {
			title = rec.Name
		}
		created := edmTime(rec.CreatedAt)
		feed.Entries = append(feed.Entries, atomEntry{
			ID:      base + entryID,
			Title:   atomText{Type: "text", Value: rec.Name},
			Summary: atomText{Type: "text", Value: meta[simpleregistry.MetaSummary]},
			Updated: rec.CreatedAt.UTC().Format(time.RFC3339),
			Author:  atomAuthor{Name: meta[metaAuthors]},
			Link:    atomLink{Rel: "edit", Title: "V2FeedPackage", Href: entryID},
			Content: atomContent{Type: packageContentType, Src: base + "download/" + rec.Name + "/" + rec.Version},
			Properties: packageProps{
				ID:                      rec.Name,
				Version:                 rec.Version,
				NormalizedVersion:       rec.Version,
				Title:                   title,
				Authors:                 meta[metaAuthors],
				Description:             meta[simpleregistry.MetaDescription],
				Summary:                 meta[simpleregistry.MetaSummary],
				Tags:                    meta[simpleregistry.MetaTags],
				ProjectURL:              meta[metaProjectURL],
				LicenseURL:              meta[metaLicenseURL],
				Created:                 created,
				Published:               created,
				LastUpdated:             created,
				IsLatestVersion:         edmBool(latest[versionKey(rec)]),
				IsAbsoluteLatestVersion: edmBool(absolute[versionKey(rec)]),
				IsPrerelease:            edmBool(simpleregistry.IsPrerelease(rec.Version)),
				DownloadCount:           typed{Type: "Edm.Int32", Value: "0"},
				PackageSize:             typed{Type: "Edm.Int64", Value: strconv.FormatInt(rec.Size, 10)},
				PackageHash:             packageHash(rec.Checksum),
				PackageHashAlgorithm:    "SHA256",
			},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(feed)
}

// packageHash converts the hex checksum of the index into the base64 form clients expect
func packageHash(checksum string) string {
	raw, err := hex.DecodeString(checksum)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}
