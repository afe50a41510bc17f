package gcs_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	configloader "github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	gcs "github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

func TestPublicDownloadURL(t *testing.T) {
	got := gcs.PublicDownloadURL("", "carcare-uploads", "crashed_car_picture/user123_20240122.jpg")
	require.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/carcare-uploads/o/crashed_car_picture%2Fuser123_20240122.jpg?alt=media",
		got)
}

func TestPublicDownloadURLEscapesPlusAndSpace(t *testing.T) {
	require.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/b/o/crashed_car_picture%2Fa%2Bb%20c_20240101.jpg?alt=media",
		gcs.PublicDownloadURL("", "b", "crashed_car_picture/a+b c_20240101.jpg"))
}

func TestPublicDownloadURLRoundTrip(t *testing.T) {
	objects := []string{
		"crashed_car_picture/user123_20240122.jpg",
		"crashed_car_picture/김철수_20240122.png",
		"crashed_car_picture/with space_20240122.jpeg",
		"crashed_car_picture/a?b#c_20240122.jpg",
		"crashed_car_picture/nested/objects/u1_20240101.jpg",
		"crashed_car_picture/a+b_20240101.jpg",
		"crashed_car_picture/a b+c&d=e_20240101.jpg",
		"crashed_car_picture/x:y@z$1,2;3_20240101.jpg",
	}
	for _, object := range objects {
		t.Run(object, func(t *testing.T) {
			raw := gcs.PublicDownloadURL("storage.example", "bucket", object)
			require.True(t, strings.HasSuffix(raw, "?alt=media"))

			encoded := strings.TrimSuffix(strings.TrimPrefix(raw, "https://storage.example/v0/b/bucket/o/"), "?alt=media")
			require.NotContains(t, encoded, "/")
			require.NotContains(t, encoded, "?")
			for _, reserved := range []string{"+", "&", "=", ":", "@", "$", ",", ";"} {
				require.NotContains(t, encoded, reserved)
			}

			decoded, err := url.PathUnescape(encoded)
			require.NoError(t, err)
			require.Equal(t, object, decoded)

			// 下载端按查询串规则解码时 '+' 会变成空格
			decoded, err = url.QueryUnescape(encoded)
			require.NoError(t, err)
			require.Equal(t, object, decoded)
		})
	}
}

func TestURLBuilderPublicMode(t *testing.T) {
	builder, err := gcs.NewURLBuilder(context.Background(), configloader.ImageURLConfig{Mode: "public", Host: "cdn.example"}, log.NewStdLogger(io.Discard))
	require.NoError(t, err)

	got, err := builder.ImageURL(context.Background(), "bucket", "crashed_car_picture/u1_20240101.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/v0/b/bucket/o/crashed_car_picture%2Fu1_20240101.jpg?alt=media", got)

	_, err = builder.ImageURL(context.Background(), "", "x.jpg")
	require.Error(t, err)
}

func TestURLBuilderSignedMode(t *testing.T) {
	ctx := context.Background()
	keyPEM, accessID := generateTestKey(t)
	fixed := time.Now().UTC()

	builder, err := gcs.NewURLBuilder(ctx, configloader.ImageURLConfig{
		Mode:      "signed",
		SignedTTL: configloader.Duration(10 * time.Minute),
	}, log.NewStdLogger(io.Discard),
		gcs.WithServiceAccountKey(accessID, keyPEM),
		gcs.WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	signedURL, err := builder.ImageURL(ctx, "carcare-uploads", "crashed_car_picture/u1_20240101.jpg")
	require.NoError(t, err)

	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)
	require.NotEmpty(t, parsed.Host)
	require.Contains(t, parsed.Path, "crashed_car_picture/u1_20240101.jpg")
	query := parsed.Query()
	require.NotEmpty(t, query.Get("X-Goog-Expires"))
	require.Equal(t, "GOOG4-RSA-SHA256", query.Get("X-Goog-Algorithm"))
	require.Contains(t, query.Get("X-Goog-Credential"), "test-signer@unit-test.iam.gserviceaccount.com")
}

func generateTestKey(t *testing.T) ([]byte, string) {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
	return pemBytes, "test-signer@unit-test.iam.gserviceaccount.com"
}
