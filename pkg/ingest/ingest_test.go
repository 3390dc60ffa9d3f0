package ingest

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

func TestTagMap(t *testing.T) {
	tests := []struct {
		name  string
		input []ec2types.Tag
		want  map[string]string
	}{
		{name: "empty slice", input: []ec2types.Tag{}, want: map[string]string{}},
		{
			name:  "single tag",
			input: []ec2types.Tag{{Key: aws.String("Env"), Value: aws.String("prod")}},
			want:  map[string]string{"Env": "prod"},
		},
		{
			name: "multiple tags",
			input: []ec2types.Tag{
				{Key: aws.String("Name"), Value: aws.String("web-server")},
				{Key: aws.String("Env"), Value: aws.String("staging")},
			},
			want: map[string]string{"Name": "web-server", "Env": "staging"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tagMap(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tagMap(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnvFromTags(t *testing.T) {
	tests := []struct {
		name  string
		input []ec2types.Tag
		want  string
	}{
		{name: "no tags defaults to prod", input: nil, want: "prod"},
		{
			name:  "Env tag",
			input: []ec2types.Tag{{Key: aws.String("Env"), Value: aws.String("dev")}},
			want:  "dev",
		},
		{
			name:  "Environment tag",
			input: []ec2types.Tag{{Key: aws.String("Environment"), Value: aws.String("qa")}},
			want:  "qa",
		},
		{
			name:  "lowercase env tag",
			input: []ec2types.Tag{{Key: aws.String("env"), Value: aws.String("sandbox")}},
			want:  "sandbox",
		},
		{
			name:  "unrelated tags ignored",
			input: []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("web-server")}},
			want:  "prod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envFromTags(tt.input); got != tt.want {
				t.Errorf("envFromTags(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
