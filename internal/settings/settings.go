// Package settings holds the immutable configuration snapshot read by the
// upload pipeline.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.lorenzomilicia.dev/imgup/internal/util"
)

// AltType selects how the alt text of an inserted image is built
type AltType string

const (
	AltNone     AltType = "none"
	AltFilename AltType = "filename"
	AltCustom   AltType = "custom"
)

// Backend selects the remote storage the gateway talks to
type Backend string

const (
	BackendHTTP Backend = "http"
	BackendS3   Backend = "s3"
)

// UploadFormat is the body encoding used by the HTTP gateway
type UploadFormat string

const (
	FormatForm      UploadFormat = "form"
	FormatMultipart UploadFormat = "multipart"
)

// S3Settings configures the S3-compatible backend (AWS S3, Cloudflare R2, etc.)
type S3Settings struct {
	// Endpoint is the S3-compatible endpoint URL, empty for AWS S3
	Endpoint string `yaml:"endpoint,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`

	// Credentials fall back to R2_* / AWS_* environment variables when empty
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`

	// BaseURL is the public URL prefix of uploaded objects
	BaseURL string `yaml:"base_url,omitempty"`
}

// Settings is the configuration snapshot for one operation. Callers pass it
// by value; nothing in the pipeline mutates it.
type Settings struct {
	Language     string       `yaml:"language"`
	EnableUpload bool         `yaml:"enable_upload"`
	Backend      Backend      `yaml:"backend"`
	ServerURL    string       `yaml:"server_url"`
	UploadAPI    string       `yaml:"upload_api"`
	UploadFormat UploadFormat `yaml:"upload_format"`
	ImageQuality int          `yaml:"image_quality"`

	// WorkDir is the destination sub-directory hint sent to the server
	WorkDir string `yaml:"work_dir"`

	// WorkOnNetwork enables re-uploading remote images found in pasted text
	WorkOnNetwork bool     `yaml:"work_on_network"`
	BlockDomains  []string `yaml:"block_domains"`

	AltType   AltType `yaml:"alt_type"`
	AltText   string  `yaml:"alt_text"`
	ImageSize string  `yaml:"image_size"`

	DeleteSourceOnReplace bool `yaml:"delete_source_on_replace"`

	// ApplyImageWithText decides whether a paste carrying both text and an
	// image is handled as an image upload
	ApplyImageWithText bool `yaml:"apply_image_with_text"`

	MaxConcurrentUploads int           `yaml:"max_concurrent_uploads"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`

	S3 S3Settings `yaml:"s3,omitempty"`
}

// Default returns the settings used when no file or environment overrides them
func Default() Settings {
	return Settings{
		Language:             "en",
		EnableUpload:         true,
		Backend:              BackendHTTP,
		UploadFormat:         FormatForm,
		ImageQuality:         40,
		AltType:              AltNone,
		ApplyImageWithText:   true,
		MaxConcurrentUploads: 4,
		RequestTimeout:       30 * time.Second,
		S3: S3Settings{
			Region: "auto",
		},
	}
}

// Load builds settings from defaults, the optional YAML file at path and
// IMGUP_* environment variables, in that order.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		if err := util.LoadYAML(path, &s); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Settings{}, fmt.Errorf("failed to load settings: %w", err)
			}
		}
	}
	s.applyEnv()
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s to path as YAML
func Save(path string, s Settings) error {
	return util.SaveYAML(path, s)
}

func (s *Settings) applyEnv() {
	s.Language = envStr("IMGUP_LANGUAGE", s.Language)
	s.EnableUpload = envBool("IMGUP_ENABLE_UPLOAD", s.EnableUpload)
	s.Backend = Backend(envStr("IMGUP_BACKEND", string(s.Backend)))
	s.ServerURL = envStr("IMGUP_SERVER_URL", s.ServerURL)
	s.UploadAPI = envStr("IMGUP_UPLOAD_API", s.UploadAPI)
	s.ImageQuality = envInt("IMGUP_IMAGE_QUALITY", s.ImageQuality)
	s.WorkDir = envStr("IMGUP_WORK_DIR", s.WorkDir)
	s.WorkOnNetwork = envBool("IMGUP_WORK_ON_NETWORK", s.WorkOnNetwork)
	if v := envStr("IMGUP_BLOCK_DOMAINS", ""); v != "" {
		s.BlockDomains = splitList(v)
	}
	s.S3.Endpoint = envStr("IMGUP_S3_ENDPOINT", s.S3.Endpoint)
	s.S3.Region = envStr("IMGUP_S3_REGION", s.S3.Region)
	s.S3.Bucket = envStr("IMGUP_S3_BUCKET", s.S3.Bucket)
	s.S3.BaseURL = envStr("IMGUP_S3_BASE_URL", s.S3.BaseURL)
}

func (s *Settings) normalize() {
	s.ServerURL = strings.TrimRight(strings.TrimSpace(s.ServerURL), "/")
	s.UploadAPI = strings.TrimSpace(s.UploadAPI)
	s.S3.BaseURL = strings.TrimRight(strings.TrimSpace(s.S3.BaseURL), "/")
	if s.Backend == "" {
		s.Backend = BackendHTTP
	}
	if s.UploadFormat == "" {
		s.UploadFormat = FormatForm
	}
	if s.AltType == "" {
		s.AltType = AltNone
	}
	if s.MaxConcurrentUploads <= 0 {
		s.MaxConcurrentUploads = 1
	}
}

// Validate checks enumerated fields and URL shapes
func (s Settings) Validate() error {
	switch s.AltType {
	case AltNone, AltFilename, AltCustom:
	default:
		return fmt.Errorf("invalid alt_type %q", s.AltType)
	}
	switch s.Backend {
	case BackendHTTP, BackendS3:
	default:
		return fmt.Errorf("invalid backend %q", s.Backend)
	}
	switch s.UploadFormat {
	case FormatForm, FormatMultipart:
	default:
		return fmt.Errorf("invalid upload_format %q", s.UploadFormat)
	}
	if s.ImageQuality < 0 || s.ImageQuality > 100 {
		return fmt.Errorf("image_quality must be between 0 and 100, got %d", s.ImageQuality)
	}
	if s.ServerURL != "" {
		u, err := url.Parse(s.ServerURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("server_url must be an absolute http(s) URL, got %q", s.ServerURL)
		}
	}
	if s.UploadAPI != "" && !strings.HasPrefix(s.UploadAPI, "/") {
		return fmt.Errorf("upload_api must start with /, got %q", s.UploadAPI)
	}
	return nil
}

// Enabled reports whether uploads are allowed without a front-matter override
func (s Settings) Enabled() bool {
	if !s.EnableUpload {
		return false
	}
	if err := s.Validate(); err != nil {
		return false
	}
	if s.Backend == BackendS3 {
		return s.S3.Bucket != ""
	}
	return s.ServerURL != "" && s.UploadAPI != ""
}

// Quality returns the quality hint sent with every upload
func (s Settings) Quality() int {
	if s.ImageQuality <= 0 {
		return 40
	}
	return s.ImageQuality
}

// NetworkBlockList returns the domains excluded from network image
// re-uploads. Images already hosted on the upload server are always excluded.
func (s Settings) NetworkBlockList() []string {
	list := make([]string, 0, len(s.BlockDomains)+1)
	for _, d := range s.BlockDomains {
		if d = strings.TrimSpace(d); d != "" {
			list = append(list, d)
		}
	}
	if s.ServerURL != "" {
		list = append(list, s.ServerURL)
	}
	if s.S3.BaseURL != "" {
		list = append(list, s.S3.BaseURL)
	}
	return list
}

// ImageAlt builds the alt segment of an inserted image for the given source name
func (s Settings) ImageAlt(name string) string {
	var alt string
	switch s.AltType {
	case AltFilename:
		alt = name
	case AltCustom:
		alt = s.AltText
	}
	if s.ImageSize != "" {
		alt += "|" + s.ImageSize
	}
	return alt
}

// MarkdownImage renders the final image markup for an uploaded file
func (s Settings) MarkdownImage(name, url string) string {
	return fmt.Sprintf("![%s](%s)", s.ImageAlt(name), url)
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
