package cert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSiteKey = "0x4AAAAAAABkMYinukE8nzYS"

func TestExtractSiteKey_DataAttribute(t *testing.T) {
	t.Parallel()

	markup := `<form><div class="widget" data-sitekey="` + testSiteKey + `"></div></form>`

	key, strategy := ExtractSiteKey(markup)
	assert.Equal(t, testSiteKey, key)
	assert.Equal(t, "data_sitekey_attribute", strategy)
}

func TestExtractSiteKey_JSLiteral(t *testing.T) {
	t.Parallel()

	markup := `<script>var options = { sitekey: '` + testSiteKey + `', theme: 'light' };</script>`

	key, strategy := ExtractSiteKey(markup)
	assert.Equal(t, testSiteKey, key)
	assert.Equal(t, "sitekey_js_literal", strategy)
}

func TestExtractSiteKey_RenderCall(t *testing.T) {
	t.Parallel()

	markup := `<script>turnstile.render(container, {sitekey: "` + testSiteKey + `"});</script>`

	key, strategy := ExtractSiteKey(markup)
	assert.Equal(t, testSiteKey, key)
	// The JS-literal pattern also matches a render call; it sits earlier in
	// the chain, so it wins.
	assert.Equal(t, "sitekey_js_literal", strategy)
}

func TestExtractSiteKey_RenderCallOnly(t *testing.T) {
	t.Parallel()

	// Exercise the render-call strategy in isolation.
	markup := `<script>turnstile.render(el, {sitekey: "` + testSiteKey + `"});</script>`
	for _, s := range SiteKeyStrategies {
		if s.Name == "turnstile_render_call" {
			assert.Equal(t, testSiteKey, s.Extract(markup))
			return
		}
	}
	t.Fatal("turnstile_render_call strategy not registered")
}

func TestExtractSiteKey_ContainerFallback(t *testing.T) {
	t.Parallel()

	// No sitekey in scripts nor as an early attribute match; only the DOM
	// query keyed on the container class finds it.
	markup := `<html><body><div class="cf-turnstile" DATA-SITEKEY="` + testSiteKey + `"></div></body></html>`
	for _, s := range SiteKeyStrategies {
		if s.Name == "cf_turnstile_container" {
			assert.Equal(t, testSiteKey, s.Extract(markup))
			return
		}
	}
	t.Fatal("cf_turnstile_container strategy not registered")
}

func TestExtractSiteKey_NoMatch(t *testing.T) {
	t.Parallel()

	key, strategy := ExtractSiteKey(`<html><body><p>manutenção programada</p></body></html>`)
	assert.Empty(t, key)
	assert.Empty(t, strategy)
}
