package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

const DefaultLang = "en"

type Translator struct {
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the formatted message for key, or the key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Bundle holds one Translator per language and falls back to DefaultLang.
type Bundle struct {
	langs map[string]*Translator
}

// NewBundle loads every locales/*.yaml in fsys. The default language must
// be present.
func NewBundle(fsys fs.FS) (*Bundle, error) {
	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, err
	}
	b := &Bundle{langs: map[string]*Translator{}}
	for _, f := range files {
		lang := strings.TrimSuffix(path.Base(f), ".yaml")
		tr, err := NewTranslator(fsys, lang)
		if err != nil {
			return nil, err
		}
		b.langs[lang] = tr
	}
	if _, ok := b.langs[DefaultLang]; !ok {
		return nil, fmt.Errorf("default locale %q missing", DefaultLang)
	}
	return b, nil
}

// For picks the translator for an Accept-Language style value ("ru-RU,ru;q=0.9").
func (b *Bundle) For(acceptLanguage string) *Translator {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		tag = strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if tr, ok := b.langs[tag]; ok {
			return tr
		}
	}
	return b.langs[DefaultLang]
}
