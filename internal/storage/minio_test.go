package storage

import (
	"encoding/json"
	"testing"

	"github.com/abduss/accounts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinIOEndpoint(t *testing.T) {
	cases := map[string]string{
		"localhost":               "localhost:9000",
		"minio:9100":              "minio:9100",
		"http://minio":            "minio:9000",
		"https://s3.example.com/": "s3.example.com:9000",
	}
	for in, want := range cases {
		assert.Equal(t, want, MinIOEndpoint(config.MinIOConfig{Endpoint: in}), in)
	}
}

func TestPublicReadPolicyIsValidJSON(t *testing.T) {
	var policy struct {
		Statement []struct {
			Action   []string `json:"Action"`
			Resource []string `json:"Resource"`
		} `json:"Statement"`
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("avatars")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, []string{"s3:GetObject"}, policy.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::avatars/*"}, policy.Statement[0].Resource)
}

func TestNewMinIOClient(t *testing.T) {
	client, err := NewMinIOClient(config.MinIOConfig{Endpoint: "localhost", AccessKeyID: "k", SecretAccessKey: "s", Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
