package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultBuild is the reserved name of the canonical build that aggregation
// writes to and reference comparisons read from.
const DefaultBuild = "default"

// DiagnosticSep joins the two config names of a diagnostic image.
const DiagnosticSep = "__vs__"

// MetaDir holds campaign-level diagnostics inside a campaign directory.
const MetaDir = "meta"

const (
	imageExt = ".png"
	htmlExt  = ".html"

	buildNameLayout = "20060102-150405"
)

// Field names in path order.
const (
	FieldBuild    = "build"
	FieldCampaign = "campaign"
	FieldSize     = "size"
	FieldType     = "type"
	FieldConfig   = "config"
)

const fieldCount = 5

// Fields holds the five path components of an Identity. An empty string means
// the field is unset. Fields also serves as the override set for With.
type Fields struct {
	Build    string
	Campaign string
	Size     string
	Type     string
	Config   string
}

// Identity addresses a stored artifact (or, when partially specified, a
// directory of artifacts) under a base directory. Identity is a value type:
// methods never modify the receiver.
type Identity struct {
	base   string
	fields Fields
}

type namedField struct {
	name  string
	value string
}

// Key converts a field value to its path form, so integer and string campaign
// IDs address the same directory.
func Key(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// New creates an Identity rooted at base.
func New(base string, f Fields) Identity {
	return Identity{
		base: filepath.Clean(base),
		fields: Fields{
			Build:    strings.TrimSpace(f.Build),
			Campaign: strings.TrimSpace(f.Campaign),
			Size:     strings.TrimSpace(f.Size),
			Type:     strings.TrimSpace(f.Type),
			Config:   strings.TrimSpace(f.Config),
		},
	}
}

// With returns a copy of id where every non-empty field of overrides replaces
// the corresponding field.
func (id Identity) With(overrides Fields) Identity {
	f := id.fields
	if overrides.Build != "" {
		f.Build = overrides.Build
	}
	if overrides.Campaign != "" {
		f.Campaign = overrides.Campaign
	}
	if overrides.Size != "" {
		f.Size = overrides.Size
	}
	if overrides.Type != "" {
		f.Type = overrides.Type
	}
	if overrides.Config != "" {
		f.Config = overrides.Config
	}
	return New(id.base, f)
}

// Base returns the directory identities are resolved against.
func (id Identity) Base() string { return id.base }

// Fields returns a copy of the identity's fields.
func (id Identity) Fields() Fields { return id.fields }

func (id Identity) Build() string    { return id.fields.Build }
func (id Identity) Campaign() string { return id.fields.Campaign }
func (id Identity) Size() string     { return id.fields.Size }
func (id Identity) Type() string     { return id.fields.Type }
func (id Identity) Config() string   { return id.fields.Config }

func (id Identity) ordered() [fieldCount]namedField {
	return [fieldCount]namedField{
		{FieldBuild, id.fields.Build},
		{FieldCampaign, id.fields.Campaign},
		{FieldSize, id.fields.Size},
		{FieldType, id.fields.Type},
		{FieldConfig, id.fields.Config},
	}
}

// Complete reports whether all five fields are set.
func (id Identity) Complete() bool {
	for _, f := range id.ordered() {
		if f.value == "" {
			return false
		}
	}
	return true
}

// Resolve joins the base directory and the fields in order. With allowPartial
// it stops at the first unset field and returns the deepest resolvable
// directory; otherwise an unset field is a *MissingFieldError.
func (id Identity) Resolve(allowPartial bool) (string, error) {
	path := id.base
	for _, f := range id.ordered() {
		if f.value == "" {
			if allowPartial {
				return path, nil
			}
			return "", &MissingFieldError{Field: f.name, Path: path}
		}
		if strings.ContainsRune(f.value, filepath.Separator) || f.value == "." || f.value == ".." {
			return "", &InvalidPathError{Path: path, Message: fmt.Sprintf("%s %q is not a single path segment", f.name, f.value)}
		}
		path = filepath.Join(path, f.value)
	}
	return path, nil
}

// Path returns the partial resolution of id, or the base directory if a field
// cannot be used as a path segment.
func (id Identity) Path() string {
	path, err := id.Resolve(true)
	if err != nil {
		return id.base
	}
	return path
}

// Equal reports whether both identities address the same path.
func (id Identity) Equal(other Identity) bool {
	a, errA := id.Resolve(true)
	b, errB := other.Resolve(true)
	if errA != nil || errB != nil {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// String returns the set fields joined by "/", e.g. "run1/477944/300x250".
func (id Identity) String() string {
	parts := make([]string, 0, fieldCount)
	for _, f := range id.ordered() {
		if f.value == "" {
			break
		}
		parts = append(parts, f.value)
	}
	return strings.Join(parts, "/")
}

// ArtifactName is the file stem shared by the artifact's image and markup.
func (id Identity) ArtifactName() (string, error) {
	if _, err := id.Resolve(false); err != nil {
		return "", err
	}
	f := id.fields
	return strings.Join([]string{f.Config, f.Campaign, f.Size, f.Type}, "-"), nil
}

// ImagePath returns the screenshot path of a fully specified identity.
func (id Identity) ImagePath() (string, error) {
	return id.artifactPath(imageExt)
}

// HTMLPath returns the raw markup path of a fully specified identity.
func (id Identity) HTMLPath() (string, error) {
	return id.artifactPath(htmlExt)
}

func (id Identity) artifactPath(ext string) (string, error) {
	dir, err := id.Resolve(false)
	if err != nil {
		return "", err
	}
	name, err := id.ArtifactName()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+ext), nil
}

// HasArtifact reports whether the screenshot of a fully specified identity
// exists.
func (id Identity) HasArtifact() bool {
	path, err := id.ImagePath()
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DiagnosticName returns the file name of the diagnostic image comparing the
// named configs, e.g. "chrome__vs__firefox.png".
func DiagnosticName(configs ...string) string {
	return strings.Join(configs, DiagnosticSep) + imageExt
}

// TagDiagnosticPath is where a diagnostic for the tag (campaign, size, type)
// of id is written. Config is ignored.
func (id Identity) TagDiagnosticPath(configs ...string) (string, error) {
	tag := New(id.base, Fields{Build: id.fields.Build, Campaign: id.fields.Campaign, Size: id.fields.Size, Type: id.fields.Type})
	dir, err := tag.resolveThrough(FieldType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DiagnosticName(configs...)), nil
}

// CampaignDiagnosticPath is where a campaign-level diagnostic is written.
func (id Identity) CampaignDiagnosticPath(configs ...string) (string, error) {
	campaign := New(id.base, Fields{Build: id.fields.Build, Campaign: id.fields.Campaign})
	dir, err := campaign.resolveThrough(FieldCampaign)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MetaDir, DiagnosticName(configs...)), nil
}

// resolveThrough resolves id up to and including the named field, failing if any
// field up to it is unset.
func (id Identity) resolveThrough(last string) (string, error) {
	path := id.base
	for _, f := range id.ordered() {
		if f.value == "" {
			return "", &MissingFieldError{Field: f.name, Path: path}
		}
		path = filepath.Join(path, f.value)
		if f.name == last {
			break
		}
	}
	if _, err := id.Resolve(true); err != nil {
		return "", err
	}
	return path, nil
}

// Create makes the directory addressed by id and returns it.
func (id Identity) Create() (string, error) {
	path, err := id.Resolve(true)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}

// Exists reports whether the directory addressed by id exists.
func (id Identity) Exists() bool {
	path, err := id.Resolve(true)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// RemoveBuild deletes the whole build directory of id.
func (id Identity) RemoveBuild() error {
	path, err := id.resolveThrough(FieldBuild)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove build %s: %w", path, err)
	}
	return nil
}

// Parse reconstructs an Identity from a leaf artifact directory, or from the
// path of a file inside one. The last five path segments become the fields
// and the remainder becomes the base.
func Parse(path string) (Identity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, &InvalidPathError{Path: path, Message: "path does not exist", Cause: err}
	}

	dir := filepath.Clean(path)
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	var segments [fieldCount]string
	rest := dir
	for i := fieldCount - 1; i >= 0; i-- {
		seg := filepath.Base(rest)
		if seg == "." || seg == ".." || seg == string(filepath.Separator) || seg == "" {
			return Identity{}, &InvalidPathError{
				Path:    path,
				Message: fmt.Sprintf("expected %d addressable segments, found %d", fieldCount, fieldCount-1-i),
			}
		}
		segments[i] = seg
		rest = filepath.Dir(rest)
	}

	return New(rest, Fields{
		Build:    segments[0],
		Campaign: segments[1],
		Size:     segments[2],
		Type:     segments[3],
		Config:   segments[4],
	}), nil
}

// NewBuildName returns the run build name for a capture started at t.
// Names sort in capture order.
func NewBuildName(t time.Time) string {
	return t.Format(buildNameLayout)
}

// ListDirs returns the names of the immediate subdirectories of path in
// ascending order.
func ListDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &InvalidPathError{Path: path, Message: "cannot read directory", Cause: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Campaigns lists the campaign directories of the build addressed by id.
func (id Identity) Campaigns() ([]string, error) {
	path, err := id.resolveThrough(FieldBuild)
	if err != nil {
		return nil, err
	}
	names, err := ListDirs(path)
	if err != nil {
		return nil, err
	}
	campaigns := names[:0]
	for _, name := range names {
		if name != MetaDir {
			campaigns = append(campaigns, name)
		}
	}
	return campaigns, nil
}
