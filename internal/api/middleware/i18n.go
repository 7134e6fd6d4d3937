package middleware

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Translator loads the locale files once and answers lookups for every
// language found there.
type Translator struct {
	bundle      *i18n.Bundle
	localizers  map[string]*i18n.Localizer
	defaultLang string
	matcher     language.Matcher
	supported   []string
}

// NewTranslator builds a translator from the JSON locale files in dir.
// The file name is the language code ("en.json" serves "en"); the
// default language must have a file.
func NewTranslator(dir, defaultLang string) (*Translator, error) {
	bundle := i18n.NewBundle(language.MustParse(defaultLang))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:      bundle,
		localizers:  make(map[string]*i18n.Localizer),
		defaultLang: defaultLang,
	}

	localeFiles, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var tags []language.Tag
	for _, file := range localeFiles {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		langCode := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if _, err := bundle.LoadMessageFile(filepath.Join(dir, file.Name())); err != nil {
			return nil, err
		}

		// Key lookups fall back to the default language
		t.localizers[langCode] = i18n.NewLocalizer(bundle, langCode, defaultLang)
		t.supported = append(t.supported, langCode)
		tags = append(tags, language.Make(langCode))
	}

	t.matcher = language.NewMatcher(tags)
	return t, nil
}

// Supported reports whether a locale file exists for lang.
func (t *Translator) Supported(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Languages returns the loaded language codes.
func (t *Translator) Languages() []string {
	return t.supported
}

// T resolves key in the given language. Unknown keys come back
// verbatim so templates render the key instead of breaking.
func (t *Translator) T(lang, key string) string {
	localizer, ok := t.localizers[lang]
	if !ok {
		localizer = t.localizers[t.defaultLang]
	}
	if localizer == nil {
		return key
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil {
		return key
	}
	return msg
}

// matchHeader picks the best supported language for an Accept-Language
// header value.
func (t *Translator) matchHeader(header string) string {
	if header == "" || len(t.supported) == 0 {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return t.supported[idx]
}

// I18n resolves the request language and stores it on the context.
// Precedence: explicit ?lang switch (persisted to the session), then
// the session, then the Accept-Language header, then the default.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.Supported(lang) {
			session.Set("language", lang)
			session.Save()
		} else {
			lang = ""
			if sessionLang, ok := session.Get("language").(string); ok && translator.Supported(sessionLang) {
				lang = sessionLang
			}
		}

		if lang == "" {
			lang = translator.matchHeader(c.GetHeader("Accept-Language"))
		}
		if lang == "" {
			lang = translator.defaultLang
		}

		c.Set("language", lang)
		c.Next()
	}
}
