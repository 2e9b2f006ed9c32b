package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// S3Config descreve um bucket compatível com S3 (AWS, R2, MinIO).
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

func (cfg S3Config) validate() error {
	required := []struct{ value, msg string }{
		{cfg.Endpoint, "endpoint do S3 ausente"},
		{cfg.Region, "região do S3 ausente"},
		{cfg.Bucket, "bucket do S3 ausente"},
		{cfg.AccessKey, "access key ausente"},
		{cfg.SecretKey, "secret key ausente"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.New("storage: " + r.msg)
		}
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}

// S3Uploader envia anexos com PUT assinado (SigV4).
type S3Uploader struct {
	cfg    S3Config
	client *http.Client
	signer sigV4
	now    func() time.Time
}

// NewS3Uploader valida a configuração e prepara o cliente.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &S3Uploader{
		cfg:    cfg,
		client: client,
		signer: sigV4{accessKey: cfg.AccessKey, secretKey: cfg.SecretKey, region: cfg.Region, service: "s3"},
		now:    time.Now,
	}, nil
}

// Upload envia o objeto e devolve a URL pública quando houver domínio configurado.
func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key, err := CleanKey(input.Key)
	if err != nil {
		return nil, err
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	escapedKey := (&url.URL{Path: key}).EscapedPath()
	objectURL := fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.cfg.Endpoint, "/"), u.cfg.Bucket, escapedKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, objectURL, bytes.NewReader(input.Body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(input.Body))
	req.Header.Set("Content-Type", contentTypeOrDefault(input.ContentType))
	req.Header.Set("Content-Length", strconv.Itoa(len(input.Body)))
	if cc := strings.TrimSpace(input.CacheControl); cc != "" {
		req.Header.Set("Cache-Control", cc)
	}

	u.signer.sign(req, input.Body, u.now().UTC())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage: upload falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result := &UploadResult{URL: objectURL, ETag: strings.Trim(resp.Header.Get("ETag"), `"`)}
	if domain := strings.TrimSpace(u.cfg.PublicDomain); domain != "" {
		result.URL = strings.TrimRight(domain, "/") + "/" + escapedKey
	}
	return result, nil
}

// sigV4 assina requisições no esquema AWS4-HMAC-SHA256.
type sigV4 struct {
	accessKey string
	secretKey string
	region    string
	service   string
}

func (s sigV4) sign(req *http.Request, body []byte, now time.Time) {
	payloadHash := sha256Hex(body)
	amzDate := now.Format("20060102T150405Z")
	day := now.Format("20060102")

	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("x-amz-content-sha256", payloadHash)

	headerBlock, signedHeaders := s.canonicalHeaders(req.Header)
	canonical := strings.Join([]string{
		req.Method,
		awsEscape(ensureLeadingSlash(req.URL.Path), false),
		canonicalQuery(req.URL.Query()),
		headerBlock,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{day, s.region, s.service, "aws4_request"}, "/")
	toSign := strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, sha256Hex([]byte(canonical))}, "\n")

	key := []byte("AWS4" + s.secretKey)
	for _, part := range []string{day, s.region, s.service, "aws4_request"} {
		key = hmacSum(key, part)
	}
	signature := hex.EncodeToString(hmacSum(key, toSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.accessKey, scope, signedHeaders, signature,
	))
}

func (s sigV4) canonicalHeaders(h http.Header) (string, string) {
	values := make(map[string]string, len(h))
	for name, vals := range h {
		lower := strings.ToLower(name)
		if lower == "authorization" {
			continue
		}
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.TrimSpace(v)
		}
		values[lower] = strings.Join(trimmed, ",")
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(values[name])
		block.WriteByte('\n')
	}
	return block.String(), strings.Join(names, ";")
}

func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, awsEscape(k, true)+"="+awsEscape(v, true))
		}
	}
	return strings.Join(parts, "&")
}

func ensureLeadingSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// awsEscape aplica o URI-encode exigido pela AWS (RFC 3986, barra opcional).
func awsEscape(input string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSum(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
