package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/mind-engage/mindengage-assess/internal/exam"
)

// BuildPackage writes questions as a zipped QTI 2.1 package: one item file per
// question plus a manifest carrying competency and level per resource.
func BuildPackage(qs []exam.Question) ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	mf := imsManifest{
		Xmlns:     "http://www.imsglobal.org/xsd/imscp_v1p1",
		Resources: []imsResource{},
	}
	for _, q := range qs {
		name := fmt.Sprintf("items/%s.xml", q.ID)
		mf.Resources = append(mf.Resources, imsResource{
			Identifier: q.ID,
			Type:       "imsqti_item_xmlv2p1",
			Href:       name,
			Metadata:   imsMetadata{Competency: q.Competency, Level: string(q.Level)},
			Files:      []imsFile{{Href: name}},
		})
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if err := writeItem(w, q); err != nil {
			return nil, fmt.Errorf("item %s: %w", q.ID, err)
		}
	}

	mfw, err := zw.Create("imsmanifest.xml")
	if err != nil {
		return nil, err
	}
	b, err := xml.MarshalIndent(mf, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err := mfw.Write(append([]byte(xml.Header), b...)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type imsManifest struct {
	XMLName   xml.Name      `xml:"manifest"`
	Xmlns     string        `xml:"xmlns,attr,omitempty"`
	Resources []imsResource `xml:"resources>resource"`
}
type imsResource struct {
	Identifier string      `xml:"identifier,attr"`
	Type       string      `xml:"type,attr"`
	Href       string      `xml:"href,attr"`
	Metadata   imsMetadata `xml:"metadata"`
	Files      []imsFile   `xml:"file"`
}
type imsMetadata struct {
	Competency string `xml:"competency"`
	Level      string `xml:"level"`
}
type imsFile struct {
	Href string `xml:"href,attr"`
}

// assessment item model, single choice only
type assessmentItem struct {
	XMLName  xml.Name     `xml:"assessmentItem"`
	Xmlns    string       `xml:"xmlns,attr"`
	ID       string       `xml:"identifier,attr"`
	Title    string       `xml:"title,attr"`
	Response responseDecl `xml:"responseDeclaration"`
	Body     itemBody     `xml:"itemBody"`
}
type responseDecl struct {
	ID          string   `xml:"identifier,attr"`
	Cardinality string   `xml:"cardinality,attr"`
	BaseType    string   `xml:"baseType,attr"`
	Correct     []string `xml:"correctResponse>value"`
}
type itemBody struct {
	Prompt      string            `xml:"p"`
	Interaction choiceInteraction `xml:"choiceInteraction"`
}
type choiceInteraction struct {
	ResponseID string         `xml:"responseIdentifier,attr"`
	MaxChoices int            `xml:"maxChoices,attr"`
	Choices    []simpleChoice `xml:"simpleChoice"`
}
type simpleChoice struct {
	ID    string `xml:"identifier,attr"`
	Label string `xml:",chardata"`
}

func writeItem(w io.Writer, q exam.Question) error {
	it := assessmentItem{
		Xmlns: "http://www.imsglobal.org/xsd/imsqti_v2p1",
		ID:    q.ID,
		Title: fmt.Sprintf("%s %s", q.Competency, q.Level),
		Response: responseDecl{
			ID: "RESPONSE", Cardinality: "single", BaseType: "identifier",
			Correct: []string{q.CorrectKey},
		},
		Body: itemBody{
			Prompt:      q.Text,
			Interaction: choiceInteraction{ResponseID: "RESPONSE", MaxChoices: 1},
		},
	}
	for _, o := range q.Options {
		it.Body.Interaction.Choices = append(it.Body.Interaction.Choices, simpleChoice{ID: o.Key, Label: o.Text})
	}
	b, err := xml.MarshalIndent(it, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append([]byte(xml.Header), b...))
	return err
}
