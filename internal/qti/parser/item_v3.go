package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

type InteractionType string

const (
	InteractionChoiceSingle InteractionType = "choice_single"
	InteractionChoiceMulti  InteractionType = "choice_multi"
	InteractionOther        InteractionType = "other"
)

type ParsedItem struct {
	ID        string
	Title     string
	Prompt    string
	Kind      InteractionType
	Choices   []Choice
	AnswerKey []string
}

type Choice struct {
	ID    string
	Label string
}

var ErrNotItem = errors.New("not an assessmentItem")

// ParseItem walks an assessmentItem document. Text outside the interaction
// becomes the prompt; markup is flattened to its character data.
func ParseItem(b []byte) (ParsedItem, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))
	var (
		it      ParsedItem
		seen    bool
		inBody  bool
		inInter bool
		cards   = map[string]string{}
		prompt  strings.Builder
	)
	it.Kind = InteractionOther
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParsedItem{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch local(t.Name) {
			case "assessmentitem":
				seen = true
				it.ID = attr(t, "identifier")
				it.Title = attr(t, "title")
			case "responsedeclaration":
				var rd struct {
					Correct []string `xml:"correctResponse>value"`
				}
				id, card := attr(t, "identifier"), attr(t, "cardinality")
				if err := dec.DecodeElement(&rd, &t); err != nil {
					return ParsedItem{}, err
				}
				cards[id] = card
				if len(it.AnswerKey) == 0 {
					for _, v := range rd.Correct {
						it.AnswerKey = append(it.AnswerKey, strings.TrimSpace(v))
					}
				}
			case "itembody":
				inBody = true
			case "choiceinteraction":
				inInter = true
				it.Kind = InteractionChoiceSingle
				if mc := attr(t, "maxChoices"); cards[attr(t, "responseIdentifier")] == "multiple" || (mc != "" && mc != "1") {
					it.Kind = InteractionChoiceMulti
				}
			case "simplechoice":
				var sc struct {
					Inner string `xml:",innerxml"`
				}
				id := attr(t, "identifier")
				if err := dec.DecodeElement(&sc, &t); err != nil {
					return ParsedItem{}, err
				}
				it.Choices = append(it.Choices, Choice{ID: id, Label: flatten(sc.Inner)})
			}
		case xml.EndElement:
			switch local(t.Name) {
			case "itembody":
				inBody = false
			case "choiceinteraction":
				inInter = false
			}
		case xml.CharData:
			if inBody && !inInter {
				prompt.Write(t)
				prompt.WriteByte(' ')
			}
		}
	}
	if !seen {
		return ParsedItem{}, ErrNotItem
	}
	it.Prompt = squash(prompt.String())
	return it, nil
}

func local(n xml.Name) string { return strings.ToLower(n.Local) }

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}

// flatten keeps only the character data of an inner XML fragment.
func flatten(inner string) string {
	dec := xml.NewDecoder(strings.NewReader("<x>" + inner + "</x>"))
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
			sb.WriteByte(' ')
		}
	}
	return squash(sb.String())
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }
