package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullFields() Fields {
	return Fields{Build: "testbuild", Campaign: "477944", Size: "300x250", Type: "iframe", Config: "chrome"}
}

func TestResolve_FullIdentity(t *testing.T) {
	id := New("/out", fullFields())

	path, err := id.Resolve(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "testbuild", "477944", "300x250", "iframe", "chrome"), path)
}

func TestResolve_MissingFieldNotPartial(t *testing.T) {
	id := New("/out", Fields{Build: "testbuild", Campaign: "477944"})

	_, err := id.Resolve(false)
	require.Error(t, err)

	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldSize, missing.Field)
	assert.Equal(t, filepath.Join("/out", "testbuild", "477944"), missing.Path)
}

func TestResolve_PartialStopsAtFirstUnsetField(t *testing.T) {
	tests := []struct {
		name   string
		fields Fields
		want   string
	}{
		{"nothing set", Fields{}, "/out"},
		{"build only", Fields{Build: "b"}, "/out/b"},
		{"through type", Fields{Build: "b", Campaign: "1", Size: "s", Type: "t"}, "/out/b/1/s/t"},
		{"gap after campaign", Fields{Build: "b", Campaign: "1", Type: "t", Config: "c"}, "/out/b/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := New("/out", tt.fields).Resolve(true)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.want), path)
		})
	}
}

func TestResolve_RejectsSeparatorInField(t *testing.T) {
	id := New("/out", Fields{Build: "a/b"})

	_, err := id.Resolve(true)
	var invalid *InvalidPathError
	assert.True(t, errors.As(err, &invalid))
}

func TestKey_IntegerAndStringCampaignMatch(t *testing.T) {
	a := New("/out", Fields{Build: "b", Campaign: Key(477944)})
	b := New("/out", Fields{Build: "b", Campaign: Key("477944")})

	assert.True(t, a.Equal(b))
	assert.Equal(t, "", Key(nil))
}

func TestWith_OverridesWinOthersInherit(t *testing.T) {
	src := New("/out", fullFields())

	clone := src.With(Fields{Build: DefaultBuild, Config: "firefox"})

	assert.Equal(t, DefaultBuild, clone.Build())
	assert.Equal(t, "firefox", clone.Config())
	assert.Equal(t, "477944", clone.Campaign())
	assert.Equal(t, "300x250", clone.Size())
	assert.Equal(t, "iframe", clone.Type())
	// source is untouched
	assert.Equal(t, "testbuild", src.Build())
	assert.Equal(t, "chrome", src.Config())
}

func TestEqual_ComparesResolvedPaths(t *testing.T) {
	a := New("/out/", fullFields())
	b := New("/out/x/..", Fields{}).With(fullFields())

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(a.With(Fields{Config: "firefox"})))
}

func TestParse_RoundTrip(t *testing.T) {
	base := t.TempDir()
	ids := []Identity{
		New(base, fullFields()),
		New(base, Fields{Build: DefaultBuild, Campaign: Key(9), Size: "728x90", Type: "script", Config: "firefox"}),
	}

	for _, id := range ids {
		path, err := id.Create()
		require.NoError(t, err)

		parsed, err := Parse(path)
		require.NoError(t, err)
		assert.True(t, id.Equal(parsed), "parse(resolve(id)) should equal id")
		assert.Equal(t, id, parsed)
	}
}

func TestParse_AcceptsArtifactFile(t *testing.T) {
	id := New(t.TempDir(), fullFields())
	_, err := id.Create()
	require.NoError(t, err)

	imagePath, err := id.ImagePath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(imagePath, []byte("png"), 0644))

	parsed, err := Parse(imagePath)
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}

func TestParse_NonexistentPath(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing"))

	var invalid *InvalidPathError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestParse_TooFewSegments(t *testing.T) {
	// "/" plus four segments cannot hold five fields
	path := filepath.Join(string(filepath.Separator), "tmp")
	if _, err := os.Stat(path); err != nil {
		t.Skip("no /tmp on this system")
	}

	_, err := Parse(path)
	var invalid *InvalidPathError
	assert.True(t, errors.As(err, &invalid))
}

func TestArtifactPaths(t *testing.T) {
	id := New("/out", fullFields())

	img, err := id.ImagePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/out/testbuild/477944/300x250/iframe/chrome/chrome-477944-300x250-iframe.png"), img)

	html, err := id.HTMLPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/out/testbuild/477944/300x250/iframe/chrome/chrome-477944-300x250-iframe.html"), html)

	_, err = New("/out", Fields{Build: "b"}).ImagePath()
	assert.Error(t, err)
}

func TestDiagnosticPaths(t *testing.T) {
	id := New("/out", fullFields())

	tag, err := id.TagDiagnosticPath("chrome", "firefox")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/out/testbuild/477944/300x250/iframe/chrome__vs__firefox.png"), tag)

	campaign, err := id.CampaignDiagnosticPath("chrome", "firefox")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/out/testbuild/477944/meta/chrome__vs__firefox.png"), campaign)

	_, err = New("/out", Fields{Build: "b", Campaign: "1"}).TagDiagnosticPath("a", "b")
	var missing *MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldSize, missing.Field)
}

func TestString(t *testing.T) {
	assert.Equal(t, "testbuild", New("/out", Fields{Build: "testbuild"}).String())
	assert.Equal(t, "testbuild/477944/300x250/iframe/chrome", New("/out", fullFields()).String())
}

func TestCreateExistsRemoveBuild(t *testing.T) {
	id := New(t.TempDir(), fullFields())
	assert.False(t, id.Exists())

	_, err := id.Create()
	require.NoError(t, err)
	assert.True(t, id.Exists())

	require.NoError(t, id.RemoveBuild())
	assert.False(t, id.Exists())
	assert.False(t, New(id.Base(), Fields{Build: id.Build()}).Exists())
}

func TestCampaigns_SkipsMetaDir(t *testing.T) {
	base := t.TempDir()
	for _, cid := range []string{"2", "1", MetaDir} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, "b", cid), 0755))
	}

	campaigns, err := New(base, Fields{Build: "b"}).Campaigns()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, campaigns)

	_, err = New(base, Fields{Build: "missing"}).Campaigns()
	assert.Error(t, err)
}

func TestNewBuildName_SortsChronologically(t *testing.T) {
	early := NewBuildName(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	late := NewBuildName(time.Date(2024, 11, 2, 3, 4, 5, 0, time.UTC))

	assert.Equal(t, "20240102-030405", early)
	assert.Less(t, early, late)
}

func TestDiagnosticName(t *testing.T) {
	assert.Equal(t, "chrome__vs__firefox.png", DiagnosticName("chrome", "firefox"))
	assert.Equal(t, "a__vs__b__vs__c.png", DiagnosticName("a", "b", "c"))
}
