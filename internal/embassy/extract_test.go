package embassy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const postPage = `<!DOCTYPE html>
<html><body>
<div class="mo-breadcrumbs"><nav>Home</nav><h1>  Ambassador's Remarks: Independence Day, 2023!  </h1></div>
<div class="main">
  <article>
    <div class="entry-content">
      <div class="featured"><img src="x.jpg"></div>
      <p>First paragraph.</p>
      <p class="byline">By Embassy Staff</p>
      <p class="lead">Lead paragraph.</p>
      <p style="color:red">Styled paragraph.</p>
      <ul><li>not a paragraph</li></ul>
      <p>Last <strong>paragraph</strong>.</p>
    </div>
  </article>
</div>
</body></html>`

func TestExtractPost(t *testing.T) {
	t.Parallel()

	post, err := ExtractPost("https://fr.usembassy.gov/remarks/", []byte(postPage))
	require.NoError(t, err)
	require.Equal(t, "https://fr.usembassy.gov/remarks/", post.URL)
	require.Equal(t, "Ambassadors Remarks Independence Day 2023", post.Title)
	require.Equal(t, "First paragraph. Lead paragraph. Last paragraph. ", post.Body)
	require.Equal(t,
		"Ambassadors Remarks Independence Day 2023\nFirst paragraph. Lead paragraph. Last paragraph. ",
		string(post.Render()),
	)
}

func TestExtractPostMissingTitle(t *testing.T) {
	t.Parallel()

	_, err := ExtractPost("u", []byte(`<html><body><div class="main"><article>
		<div class="entry-content"><div></div><p>x</p></div></article></div></body></html>`))
	require.ErrorIs(t, err, ErrNoTitle)
}

func TestExtractPostMissingContent(t *testing.T) {
	t.Parallel()

	_, err := ExtractPost("u", []byte(`<html><body>
		<div class="mo-breadcrumbs"><h1>Title</h1></div>
		<div class="main"><article><p>no entry content</p></article></div></body></html>`))
	require.ErrorIs(t, err, ErrNoContent)
}

func TestStripPunctuation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Hello World 2024", StripPunctuation("Hello, World! (2024)"))
	require.Equal(t, "Café déjàvu", StripPunctuation("Café: déjà-vu"))
	require.Equal(t, "ab", StripPunctuation(`a"#$%&'()*+,-./:;<=>?@[\]^_{|}~` + "`b"))
}
