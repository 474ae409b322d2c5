package awss3_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/s3meta/pkg/internal/storage"
	"github.com/yeisme/s3meta/pkg/internal/storage/awss3"
	"github.com/yeisme/s3meta/pkg/internal/types"
)

// fakeAPI 内存中的 S3 API，按 pageSize 分页.
type fakeAPI struct {
	keys     []string
	heads    map[string]*s3.HeadObjectOutput
	headErr  map[string]error
	listErr  error
	pageSize int
	missing  bool

	listCalls int
	copies    []*s3.CopyObjectInput
	copyErr   error
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++

	if f.listErr != nil {
		return nil, f.listErr
	}

	if in.Delimiter != nil {
		return nil, errors.New("delimiter must not be set")
	}

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range f.keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}

	end := min(start+f.pageSize, len(f.keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(f.keys))}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}

	if end < len(f.keys) {
		out.NextContinuationToken = aws.String(f.keys[end])
	}

	return out, nil
}

func (f *fakeAPI) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.missing {
		return nil, &s3types.NotFound{}
	}

	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.headErr[key]; err != nil {
		return nil, err
	}

	if h, ok := f.heads[key]; ok {
		return h, nil
	}

	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeAPI) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies = append(f.copies, in)
	if f.copyErr != nil {
		return nil, f.copyErr
	}

	return &s3.CopyObjectOutput{}, nil
}

func collect(t *testing.T, store *awss3.Client, prefix string) ([]types.ObjectDescriptor, []error) {
	t.Helper()

	var (
		objs []types.ObjectDescriptor
		errs []error
	)

	for obj, err := range store.Objects(context.Background(), "assets", prefix) {
		if err != nil {
			errs = append(errs, err)
			continue
		}

		objs = append(objs, obj)
	}

	return objs, errs
}

func TestObjectsPaginates(t *testing.T) {
	api := &fakeAPI{
		keys:     []string{"a.txt", "b/c.png", "b/d/e.json", "f.gz", "g"},
		pageSize: 2,
		heads: map[string]*s3.HeadObjectOutput{
			"a.txt": {ContentType: aws.String("text/plain"), CacheControl: aws.String("")},
		},
	}

	objs, errs := collect(t, awss3.NewWithAPI(api), "")
	require.Empty(t, errs)
	require.Len(t, objs, 5)
	assert.Equal(t, 3, api.listCalls)
	assert.Equal(t, "a.txt", objs[0].Key)
	assert.Equal(t, "text/plain", *objs[0].ContentType)
	assert.Nil(t, objs[0].CacheControl, "empty header must be treated as absent")
	assert.Equal(t, "b/d/e.json", objs[2].Key)
}

func TestObjectsHeadErrorIsPerObject(t *testing.T) {
	api := &fakeAPI{
		keys:     []string{"a", "b", "c"},
		pageSize: 10,
		headErr:  map[string]error{"b": &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}},
	}

	objs, errs := collect(t, awss3.NewWithAPI(api), "")
	require.Len(t, objs, 2)
	require.Len(t, errs, 1)

	var objErr *storage.ObjectError
	require.ErrorAs(t, errs[0], &objErr)
	assert.Equal(t, "b", objErr.Key)
	assert.Equal(t, storage.OpHead, objErr.Op)
	assert.Equal(t, "AccessDenied", objErr.Code)
}

func TestObjectsListError(t *testing.T) {
	api := &fakeAPI{listErr: &smithy.GenericAPIError{Code: "NoSuchBucket"}, pageSize: 1}

	objs, errs := collect(t, awss3.NewWithAPI(api), "x/")
	assert.Empty(t, objs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], storage.ErrBucketNotFound)

	var objErr *storage.ObjectError
	assert.False(t, errors.As(errs[0], &objErr))
}

func TestObjectsStopsEarly(t *testing.T) {
	api := &fakeAPI{keys: []string{"a", "b", "c", "d"}, pageSize: 1}

	n := 0
	for range awss3.NewWithAPI(api).Objects(context.Background(), "assets", "") {
		n++
		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, api.listCalls)
}

func TestBucketExists(t *testing.T) {
	ok, err := awss3.NewWithAPI(&fakeAPI{}).BucketExists(context.Background(), "assets")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = awss3.NewWithAPI(&fakeAPI{missing: true}).BucketExists(context.Background(), "assets")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceMetadata(t *testing.T) {
	api := &fakeAPI{}
	md := types.Metadata{
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("max-age=86400"),
		UserMetadata: map[string]string{"owner": "web"},
	}

	require.NoError(t, awss3.NewWithAPI(api).ReplaceMetadata(context.Background(), "assets", "images/logo 1.png", md))
	require.Len(t, api.copies, 1)

	in := api.copies[0]
	assert.Equal(t, "assets", aws.ToString(in.Bucket))
	assert.Equal(t, "images/logo 1.png", aws.ToString(in.Key))
	assert.Equal(t, "assets%2Fimages%2Flogo%201.png", aws.ToString(in.CopySource))
	assert.Equal(t, s3types.MetadataDirectiveReplace, in.MetadataDirective)
	assert.Equal(t, "image/png", aws.ToString(in.ContentType))
	assert.Equal(t, "max-age=86400", aws.ToString(in.CacheControl))
	assert.Nil(t, in.ContentEncoding)
	assert.Equal(t, map[string]string{"owner": "web"}, in.Metadata)
}

func TestReplaceMetadataError(t *testing.T) {
	api := &fakeAPI{copyErr: &smithy.GenericAPIError{Code: "AccessDenied"}}

	err := awss3.NewWithAPI(api).ReplaceMetadata(context.Background(), "assets", "k", types.Metadata{})

	var objErr *storage.ObjectError
	require.ErrorAs(t, err, &objErr)
	assert.Equal(t, storage.OpCopy, objErr.Op)
	assert.Equal(t, "AccessDenied", objErr.Code)
}

func TestDescriptorFromHead(t *testing.T) {
	d := awss3.DescriptorFromHead("k", &s3.HeadObjectOutput{
		ContentEncoding: aws.String("gzip"),
		ContentLanguage: aws.String(""),
		Metadata:        map[string]string{},
	})

	assert.Equal(t, "gzip", *d.ContentEncoding)
	assert.Nil(t, d.ContentLanguage)
	assert.Nil(t, d.ContentType)
	assert.Nil(t, d.UserMetadata)
}
