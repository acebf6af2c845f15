package dynamodb

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/soc-portal/internal/application/port"
)

const (
	defaultListLimit = 24
	maxListLimit     = 100

	exportsPartition = "EXPORTS"
	exportsRangeGSI  = "GSI1"

	attrPK          = "PK"
	attrSK          = "SK"
	attrGSI1PK      = "GSI1PK"
	attrGSI1SK      = "GSI1SK"
	attrID          = "export_id"
	attrRange       = "range"
	attrS3Key       = "s3_key"
	attrURL         = "url"
	attrContentType = "content_type"
	attrSizeBytes   = "size_bytes"
	attrReliability = "reliability_percentage"
	attrWindowStart = "window_start"
	attrWindowEnd   = "window_end"
	attrCreatedAt   = "created_at"
	attrExpiresAt   = "expires_at"
)

var rangePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

type tableAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ReportExportRepository indexes exported reports in a single DynamoDB table.
// The base table lists every export newest first; GSI1 narrows it to one range token.
type ReportExportRepository struct {
	client      tableAPI
	tableName   string
	strongReads bool
}

type cursorPayload struct {
	Range string                 `json:"range,omitempty"`
	Key   map[string]cursorValue `json:"key"`
}

type cursorValue struct {
	S string `json:"s,omitempty"`
	N string `json:"n,omitempty"`
}

func NewReportExportRepository(ctx context.Context, cfg Config) (*ReportExportRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newReportExportRepository(client, cfg), nil
}

func newReportExportRepository(client tableAPI, cfg Config) *ReportExportRepository {
	return &ReportExportRepository{
		client:      client,
		tableName:   strings.TrimSpace(cfg.TableName),
		strongReads: cfg.StrongReads,
	}
}

func (r *ReportExportRepository) Put(ctx context.Context, record port.ReportExportMetadata) error {
	item, err := toItem(record)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item failed: %w", err)
	}
	return nil
}

func (r *ReportExportRepository) List(ctx context.Context, query port.ReportExportListQuery) (port.ReportExportListPage, error) {
	rangeToken := strings.TrimSpace(query.Range)
	if rangeToken != "" && !rangePattern.MatchString(rangeToken) {
		return port.ReportExportListPage{}, fmt.Errorf("invalid range")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		Limit:                     aws.Int32(int32(limit)),
		ScanIndexForward:          aws.Bool(false),
		ExpressionAttributeNames:  map[string]string{},
		ExpressionAttributeValues: map[string]types.AttributeValue{},
	}

	if rangeToken == "" {
		input.ConsistentRead = aws.Bool(r.strongReads)
		input.KeyConditionExpression = aws.String("#pk = :pk")
		input.ExpressionAttributeNames["#pk"] = attrPK
		input.ExpressionAttributeValues[":pk"] = &types.AttributeValueMemberS{Value: exportsPartition}
	} else {
		// GSI reads are always eventually consistent
		input.IndexName = aws.String(exportsRangeGSI)
		input.KeyConditionExpression = aws.String("#gsi1pk = :pk")
		input.ExpressionAttributeNames["#gsi1pk"] = attrGSI1PK
		input.ExpressionAttributeValues[":pk"] = &types.AttributeValueMemberS{Value: buildGSI1PK(rangeToken)}
	}

	if cursor := strings.TrimSpace(query.Cursor); cursor != "" {
		startKey, err := decodeCursor(cursor, rangeToken)
		if err != nil {
			return port.ReportExportListPage{}, err
		}
		input.ExclusiveStartKey = startKey
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ReportExportListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	items := make([]port.ReportExportMetadata, 0, len(output.Items))
	for _, raw := range output.Items {
		item, err := fromItem(raw)
		if err != nil {
			return port.ReportExportListPage{}, err
		}
		items = append(items, item)
	}

	nextCursor := ""
	if len(output.LastEvaluatedKey) > 0 {
		nextCursor, err = encodeCursor(output.LastEvaluatedKey, rangeToken)
		if err != nil {
			return port.ReportExportListPage{}, err
		}
	}

	return port.ReportExportListPage{Items: items, NextCursor: nextCursor}, nil
}

func toItem(record port.ReportExportMetadata) (map[string]types.AttributeValue, error) {
	rangeToken := strings.TrimSpace(record.Range)
	s3Key := strings.TrimSpace(record.S3Key)
	if !rangePattern.MatchString(rangeToken) {
		return nil, fmt.Errorf("invalid range")
	}
	if s3Key == "" {
		return nil, fmt.Errorf("s3_key is required")
	}

	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	createdAtMS := createdAt.UnixMilli()

	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = objectHash(s3Key)
	}

	sortKey := buildSK(createdAtMS, s3Key)
	item := map[string]types.AttributeValue{
		attrPK:          &types.AttributeValueMemberS{Value: exportsPartition},
		attrSK:          &types.AttributeValueMemberS{Value: sortKey},
		attrGSI1PK:      &types.AttributeValueMemberS{Value: buildGSI1PK(rangeToken)},
		attrGSI1SK:      &types.AttributeValueMemberS{Value: sortKey},
		attrID:          &types.AttributeValueMemberS{Value: id},
		attrRange:       &types.AttributeValueMemberS{Value: rangeToken},
		attrS3Key:       &types.AttributeValueMemberS{Value: s3Key},
		attrReliability: &types.AttributeValueMemberN{Value: strconv.FormatFloat(record.ReliabilityPercentage, 'f', -1, 64)},
		attrCreatedAt:   &types.AttributeValueMemberN{Value: strconv.FormatInt(createdAtMS, 10)},
	}

	if url := strings.TrimSpace(record.URL); url != "" {
		item[attrURL] = &types.AttributeValueMemberS{Value: url}
	}
	if contentType := strings.TrimSpace(record.ContentType); contentType != "" {
		item[attrContentType] = &types.AttributeValueMemberS{Value: contentType}
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	if !record.WindowStart.IsZero() {
		item[attrWindowStart] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.WindowStart.UTC().UnixMilli(), 10)}
	}
	if !record.WindowEnd.IsZero() {
		item[attrWindowEnd] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.WindowEnd.UTC().UnixMilli(), 10)}
	}
	// TTL attribute is epoch seconds
	if !record.ExpiresAt.IsZero() {
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.ReportExportMetadata, error) {
	id, err := attrString(item, attrID)
	if err != nil {
		return port.ReportExportMetadata{}, err
	}
	rangeToken, err := attrString(item, attrRange)
	if err != nil {
		return port.ReportExportMetadata{}, err
	}
	s3Key, err := attrString(item, attrS3Key)
	if err != nil {
		return port.ReportExportMetadata{}, err
	}
	createdAtMS, err := attrInt64(item, attrCreatedAt)
	if err != nil {
		return port.ReportExportMetadata{}, err
	}

	record := port.ReportExportMetadata{
		ID:                    id,
		Range:                 rangeToken,
		S3Key:                 s3Key,
		URL:                   optionalString(item, attrURL),
		ContentType:           optionalString(item, attrContentType),
		SizeBytes:             optionalInt64(item, attrSizeBytes),
		ReliabilityPercentage: optionalFloat64(item, attrReliability),
		CreatedAt:             time.UnixMilli(createdAtMS).UTC(),
	}

	if ms := optionalInt64(item, attrWindowStart); ms > 0 {
		record.WindowStart = time.UnixMilli(ms).UTC()
	}
	if ms := optionalInt64(item, attrWindowEnd); ms > 0 {
		record.WindowEnd = time.UnixMilli(ms).UTC()
	}
	if seconds := optionalInt64(item, attrExpiresAt); seconds > 0 {
		record.ExpiresAt = time.Unix(seconds, 0).UTC()
	}

	return record, nil
}

func buildSK(createdAtMS int64, s3Key string) string {
	return fmt.Sprintf("TS#%013d#KEY#%s", createdAtMS, objectHash(s3Key))
}

func buildGSI1PK(rangeToken string) string {
	return "RANGE#" + rangeToken
}

func objectHash(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(key map[string]types.AttributeValue, rangeToken string) (string, error) {
	values := make(map[string]cursorValue, len(key))
	for attributeName, raw := range key {
		switch value := raw.(type) {
		case *types.AttributeValueMemberS:
			values[attributeName] = cursorValue{S: value.Value}
		case *types.AttributeValueMemberN:
			values[attributeName] = cursorValue{N: value.Value}
		default:
			return "", fmt.Errorf("unsupported cursor attribute type for %s", attributeName)
		}
	}

	serialized, err := json.Marshal(cursorPayload{Range: rangeToken, Key: values})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(cursor, rangeToken string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	if payload.Range != rangeToken {
		return nil, fmt.Errorf("cursor does not match query filters")
	}
	if len(payload.Key) == 0 {
		return nil, fmt.Errorf("invalid cursor")
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for attributeName, value := range payload.Key {
		switch {
		case value.S != "":
			key[attributeName] = &types.AttributeValueMemberS{Value: value.S}
		case value.N != "":
			key[attributeName] = &types.AttributeValueMemberN{Value: value.N}
		default:
			return nil, fmt.Errorf("invalid cursor")
		}
	}

	return key, nil
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	value, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func optionalFloat64(item map[string]types.AttributeValue, name string) float64 {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
