package crawler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const indent = "    "

// indentJSON validates body and re-serializes it pretty-printed, keeping every
// field and its original order.
func indentJSON(body []byte) ([]byte, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrDecode)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", indent); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return buf.Bytes(), nil
}

// extractProductIDs reads data.products[*].productId. A missing or malformed
// path yields no products. Entries without a usable productId are kept as ""
// so the caller can count and log them.
func extractProductIDs(body []byte) []string {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Data) == 0 {
		return nil
	}
	var data struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil
	}
	ids := make([]string, 0, len(data.Products))
	for _, raw := range data.Products {
		ids = append(ids, productID(raw))
	}
	return ids
}

// productID accepts string and numeric identifiers.
func productID(raw json.RawMessage) string {
	var summary struct {
		ProductID json.RawMessage `json:"productId"`
	}
	if err := json.Unmarshal(raw, &summary); err != nil || len(summary.ProductID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(summary.ProductID, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(summary.ProductID, &n); err == nil {
		return n.String()
	}
	return ""
}

// checkPathSegment rejects names that would escape or nest below the output
// directory they are written into.
func checkPathSegment(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid path segment %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("path segment %q contains a separator", name)
	case strings.ContainsRune(name, 0):
		return errors.New("path segment contains NUL")
	}
	return nil
}
