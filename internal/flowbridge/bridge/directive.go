package bridge

import (
	"github.com/tansive/flowbridge/pkg/types"
	"github.com/tidwall/sjson"
	"golang.org/x/text/language"
)

// ProtocolVersion is the bridge protocol spoken in start directives.
const ProtocolVersion = "1.0.0"

// StartDirective is the single outbound message of a session.
type StartDirective struct {
	SessionID string
	Config    types.Configuration
	// Resumed marks a session continuing an authenticated state held by the host; no
	// access token is sent.
	Resumed bool
}

// Encode serializes the directive into the initialization payload embedded flows expect.
// flowParams are forwarded without inspection.
func (d StartDirective) Encode() ([]byte, error) {
	c := d.Config
	doc := []byte(`{"directive":"start"}`)
	set := func(path string, value any) {
		if doc == nil {
			return
		}
		var err error
		if doc, err = sjson.SetBytes(doc, path, value); err != nil {
			doc = nil
		}
	}

	set("protocolVersion", ProtocolVersion)
	set("sessionId", d.SessionID)
	set("environment", string(c.Environment))
	set("appIssuer", c.AppIssuer)
	if c.AccessToken != "" && !d.Resumed {
		set("auth.accessToken", c.AccessToken)
	} else {
		set("auth.resumed", true)
	}
	set("theme", string(themeOrDefault(c.Theme)))
	set("language", CanonicalLanguage(c.Language))
	if !c.Flow.IsNil() {
		set("flow", c.Flow.String())
	}
	if len(c.FlowParams) > 0 {
		set("flowParams", c.FlowParams)
	}
	set("embedded", c.Embedded)

	if doc == nil {
		return nil, ErrDirectiveEncoding
	}
	return doc, nil
}

// CanonicalLanguage returns the BCP 47 form of lang, or the default language when lang does
// not parse.
func CanonicalLanguage(lang string) string {
	if lang == "" {
		return types.DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return types.DefaultLanguage
	}
	return tag.String()
}

func themeOrDefault(t types.Theme) types.Theme {
	switch t {
	case types.ThemeLight, types.ThemeDark, types.ThemeSystem:
		return t
	default:
		return types.DefaultTheme
	}
}
