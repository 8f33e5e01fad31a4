package output

import (
	"encoding/json"

	"github.com/searchbeam/searchbeam/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatPage renders a search page as JSON.
func (f *JSONFormatter) FormatPage(page *core.SearchPage) (string, error) {
	return f.marshal(page)
}

// FormatRequests renders content requests as JSON.
func (f *JSONFormatter) FormatRequests(requests []*core.ContentRequest) (string, error) {
	if requests == nil {
		requests = []*core.ContentRequest{}
	}
	return f.marshal(requests)
}

func (f *JSONFormatter) marshal(value any) (string, error) {
	if value == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
