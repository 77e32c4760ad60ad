package aggregate

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

type formListDoc struct {
	XMLName xml.Name   `xml:"xforms"`
	Forms   []formItem `xml:"xform"`
}

type formItem struct {
	FormID      string `xml:"formID"`
	Name        string `xml:"name"`
	Version     string `xml:"version"`
	Hash        string `xml:"hash"`
	DownloadURL string `xml:"downloadUrl"`
	ManifestURL string `xml:"manifestUrl"`
}

type mediaFile struct {
	Filename    string `xml:"filename"`
	Hash        string `xml:"hash"`
	DownloadURL string `xml:"downloadUrl"`
}

type manifestDoc struct {
	XMLName xml.Name    `xml:"manifest"`
	Files   []mediaFile `xml:"mediaFile"`
}

type idChunkDoc struct {
	XMLName          xml.Name `xml:"idChunk"`
	IDs              []string `xml:"idList>id"`
	ResumptionCursor string   `xml:"resumptionCursor"`
}

type submissionDoc struct {
	XMLName xml.Name `xml:"submission"`
	Data    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"data"`
	Media []mediaFile `xml:"mediaFile"`
}

func decode(op string, body []byte, v any) error {
	if err := xml.Unmarshal(body, v); err != nil {
		return domain.ProtocolError(op, "", err)
	}
	return nil
}

func parseFormList(body []byte) ([]domain.RemoteForm, error) {
	var doc formListDoc
	if err := decode("aggregate.formlist.parse", body, &doc); err != nil {
		return nil, err
	}
	out := make([]domain.RemoteForm, 0, len(doc.Forms))
	for _, f := range doc.Forms {
		out = append(out, domain.RemoteForm{
			Key:         domain.NewFormKey(f.FormID, f.Version),
			Name:        strings.TrimSpace(f.Name),
			Hash:        strings.TrimSpace(f.Hash),
			DownloadURL: strings.TrimSpace(f.DownloadURL),
			ManifestURL: strings.TrimSpace(f.ManifestURL),
		})
	}
	return out, nil
}

func parseManifest(body []byte) ([]domain.AttachmentRef, error) {
	var doc manifestDoc
	if err := decode("aggregate.manifest.parse", body, &doc); err != nil {
		return nil, err
	}
	return toRefs(doc.Files), nil
}

func parseIDChunk(body []byte) (domain.InstanceIDBatch, error) {
	var doc idChunkDoc
	if err := decode("aggregate.submissionlist.parse", body, &doc); err != nil {
		return domain.InstanceIDBatch{}, err
	}

	cursor, err := domain.ParseCursor(doc.ResumptionCursor)
	if err != nil {
		return domain.InstanceIDBatch{}, err
	}

	ids := make([]string, 0, len(doc.IDs))
	for _, id := range doc.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return domain.InstanceIDBatch{IDs: ids, Cursor: cursor}, nil
}

func parseSubmission(body []byte) ([]byte, []domain.AttachmentRef, error) {
	var doc submissionDoc
	if err := decode("aggregate.downloadsubmission.parse", body, &doc); err != nil {
		return nil, nil, err
	}
	inner := bytes.TrimSpace(doc.Data.Inner)
	if len(inner) == 0 {
		return nil, nil, domain.ProtocolError("aggregate.downloadsubmission.parse", "", errEmptySubmission)
	}
	return inner, toRefs(doc.Media), nil
}

func toRefs(files []mediaFile) []domain.AttachmentRef {
	out := make([]domain.AttachmentRef, 0, len(files))
	for _, f := range files {
		out = append(out, domain.AttachmentRef{
			Name:        strings.TrimSpace(f.Filename),
			Hash:        strings.TrimSpace(f.Hash),
			DownloadURL: strings.TrimSpace(f.DownloadURL),
		})
	}
	return out
}
