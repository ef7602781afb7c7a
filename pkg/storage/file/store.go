// Package file persists the bearer token back into the tap's config file.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saturnines/ants-tap/pkg/auth"
	"github.com/saturnines/ants-tap/pkg/config"
)

const (
	tokenKey   = "token"
	expiresKey = "token_expires_at"
)

// Store reads and writes the token and token_expires_at keys of a config
// file, leaving every other key in place. Files ending in .json are
// rewritten as JSON indented with four spaces, everything else as YAML.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store for the config file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

var _ auth.TokenStore = (*Store)(nil)

// Load reads the persisted token. A missing or unparsable expiry counts as
// no token.
func (s *Store) Load(context.Context) (auth.Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return auth.Token{}, false, fmt.Errorf("read %s: %w", s.path, err)
	}
	var persisted struct {
		Token     string `yaml:"token"`
		ExpiresAt string `yaml:"token_expires_at"`
	}
	// JSON is valid YAML
	if err := yaml.Unmarshal(data, &persisted); err != nil {
		return auth.Token{}, false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if persisted.Token == "" || persisted.ExpiresAt == "" {
		return auth.Token{}, false, nil
	}
	exp, err := config.ParseTimestamp(persisted.ExpiresAt)
	if err != nil {
		return auth.Token{}, false, nil
	}
	return auth.Token{Value: persisted.Token, ExpiresAt: exp}, true, nil
}

// Save writes tok into the config file.
func (s *Store) Save(_ context.Context, tok auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	expires := tok.ExpiresAt.Format(time.RFC3339)

	var out []byte
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		out, err = rewriteJSON(data, tok.Value, expires)
	} else {
		out, err = rewriteYAML(data, tok.Value, expires)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", s.path, err)
	}
	return writeFileAtomic(s.path, out)
}

// rewriteJSON edits the top level object in place. Key order and number
// literals are kept as written.
func rewriteJSON(data []byte, token, expires string) ([]byte, error) {
	fields, err := objectFields(data)
	if err != nil {
		return nil, err
	}
	if fields, err = setField(fields, tokenKey, token); err != nil {
		return nil, err
	}
	if fields, err = setField(fields, expiresKey, expires); err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			compact.WriteByte(',')
		}
		key, err := marshalString(f.key)
		if err != nil {
			return nil, err
		}
		compact.Write(key)
		compact.WriteByte(':')
		if err := json.Compact(&compact, f.value); err != nil {
			return nil, err
		}
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "    "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

type jsonField struct {
	key   string
	value json.RawMessage
}

// objectFields splits a JSON object into its members in document order.
func objectFields(data []byte) ([]jsonField, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("config root is not an object")
	}

	var fields []jsonField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, jsonField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func setField(fields []jsonField, key, value string) ([]jsonField, error) {
	raw, err := marshalString(value)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].key == key {
			fields[i].value = raw
			return fields, nil
		}
	}
	return append(fields, jsonField{key: key, value: raw}), nil
}

func marshalString(v string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// rewriteYAML edits the document tree so key order and comments survive.
func rewriteYAML(data []byte, token, expires string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config root is not a mapping")
	}
	root := doc.Content[0]
	setScalar(root, tokenKey, token)
	setScalar(root, expiresKey, expires)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			v.Kind, v.Tag, v.Value, v.Style, v.Content = yaml.ScalarNode, "!!str", value, 0, nil
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

// writeFileAtomic replaces path through a temp file in the same directory,
// keeping the original permissions.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o600)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
