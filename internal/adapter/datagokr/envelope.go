package datagokr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// resultOK is the data.go.kr header code for a successful call.
const resultOK = "00"

// envelope is the standard data.go.kr JSON response wrapper.
type envelope[T any] struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			TotalCount flexInt  `json:"totalCount"`
			Items      items[T] `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func (e envelope[T]) check() error {
	h := e.Response.Header
	if h.ResultCode != resultOK {
		return fmt.Errorf("data.go.kr result %q: %s", h.ResultCode, h.ResultMsg)
	}
	return nil
}

// items holds body.items.item, which the API encodes as a single object for
// one result, an array for several, and an empty string for none.
type items[T any] struct {
	Item []T
}

func (it *items[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		// "" or null: no items.
		it.Item = nil
		return nil
	}
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(b, &wrapper); err != nil {
		return err
	}
	raw := bytes.TrimSpace(wrapper.Item)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		it.Item = nil
	case raw[0] == '[':
		return json.Unmarshal(raw, &it.Item)
	default:
		var one T
		if err := json.Unmarshal(raw, &one); err != nil {
			return err
		}
		it.Item = []T{one}
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexFloat accepts a JSON number or a numeric string. Blank values decode
// as NaN so they are dropped downstream rather than read as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.ReplaceAll(string(s), ",", "")
	if str == "" || str == "-" {
		*f = flexFloat(nan())
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", str, err)
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(string(s))
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", string(s), err)
	}
	*n = flexInt(v)
	return nil
}
