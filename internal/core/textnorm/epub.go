package textnorm

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// EPUBMeta is the Dublin Core metadata carried by an e-book package
type EPUBMeta struct {
	Title      string
	Author     string
	Language   string
	Identifier string
	Date       string
	Rights     string
}

type ocfContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfPackage struct {
	Metadata struct {
		Title      string
		Creator    string
		Language   string
		Identifier string
		Date       string
		Rights     string
	}
	Items []opfItem
	Refs  []string
}

// ExtractEPUB unpacks an e-book package, walks its document parts in spine
// order, strips each to plain text, and joins them with blank-line
// separators. Parts that fail to read are skipped
func ExtractEPUB(pkgPath string) (string, EPUBMeta, error) {
	zr, err := zip.OpenReader(pkgPath)
	if err != nil {
		return "", EPUBMeta{}, fmt.Errorf("textnorm: open package: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := rootfilePath(files)
	if err != nil {
		return "", EPUBMeta{}, err
	}
	raw, err := readZipFile(files[opfPath])
	if err != nil {
		return "", EPUBMeta{}, fmt.Errorf("textnorm: read opf: %w", err)
	}

	var pkg opfPackage
	if err := unmarshalOPF(raw, &pkg); err != nil {
		return "", EPUBMeta{}, fmt.Errorf("textnorm: parse opf: %w", err)
	}

	meta := EPUBMeta{
		Title:      strings.TrimSpace(pkg.Metadata.Title),
		Author:     strings.TrimSpace(pkg.Metadata.Creator),
		Language:   strings.TrimSpace(pkg.Metadata.Language),
		Identifier: strings.TrimSpace(pkg.Metadata.Identifier),
		Date:       strings.TrimSpace(pkg.Metadata.Date),
		Rights:     strings.TrimSpace(pkg.Metadata.Rights),
	}

	hrefByID := make(map[string]string, len(pkg.Items))
	docTypes := map[string]bool{"application/xhtml+xml": true, "text/html": true}
	for _, item := range pkg.Items {
		if docTypes[item.MediaType] {
			hrefByID[item.ID] = item.Href
		}
	}

	base := path.Dir(opfPath)
	var parts []string
	for _, idref := range pkg.Refs {
		href, ok := hrefByID[idref]
		if !ok {
			continue
		}
		name := href
		if base != "." {
			name = path.Join(base, href)
		}
		f, ok := files[name]
		if !ok {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			continue
		}
		if text := HTMLToText(string(raw)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", meta, fmt.Errorf("textnorm: package has no readable document parts")
	}
	return strings.Join(parts, "\n\n"), meta, nil
}

func rootfilePath(files map[string]*zip.File) (string, error) {
	f, ok := files["META-INF/container.xml"]
	if !ok {
		return "", fmt.Errorf("textnorm: package missing META-INF/container.xml")
	}
	raw, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("textnorm: read container.xml: %w", err)
	}
	var c ocfContainer
	if err := xml.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("textnorm: parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("textnorm: container.xml names no rootfile")
	}
	p := c.Rootfiles[0].FullPath
	if _, ok := files[p]; !ok {
		return "", fmt.Errorf("textnorm: rootfile %s not in package", p)
	}
	return p, nil
}

func unmarshalOPF(raw []byte, pkg *opfPackage) error {
	type opfXML struct {
		Metadata struct {
			Title      string `xml:"title"`
			Creator    string `xml:"creator"`
			Language   string `xml:"language"`
			Identifier string `xml:"identifier"`
			Date       string `xml:"date"`
			Rights     string `xml:"rights"`
		} `xml:"metadata"`
		Manifest struct {
			Items []opfItem `xml:"item"`
		} `xml:"manifest"`
		Spine struct {
			Refs []struct {
				IDRef string `xml:"idref,attr"`
			} `xml:"itemref"`
		} `xml:"spine"`
	}
	var x opfXML
	if err := xml.Unmarshal(raw, &x); err != nil {
		return err
	}
	pkg.Metadata.Title = x.Metadata.Title
	pkg.Metadata.Creator = x.Metadata.Creator
	pkg.Metadata.Language = x.Metadata.Language
	pkg.Metadata.Identifier = x.Metadata.Identifier
	pkg.Metadata.Date = x.Metadata.Date
	pkg.Metadata.Rights = x.Metadata.Rights
	pkg.Items = x.Manifest.Items
	for _, r := range x.Spine.Refs {
		pkg.Refs = append(pkg.Refs, r.IDRef)
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
