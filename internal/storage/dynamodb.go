package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// timeFormat is a fixed-width RFC3339 variant so that lexicographic
// comparison of stored timestamps matches chronological order.
const timeFormat = "2006-01-02T15:04:05.000Z"

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	// Create tables in local mode
	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

// sessionRecord is the DynamoDB shape of an AgentSession. Times are
// stored as fixed-width strings so range filters compare correctly.
type sessionRecord struct {
	UserID         string `dynamodbav:"UserID"`
	SessionID      string `dynamodbav:"SessionID"`
	Username       string `dynamodbav:"Username,omitempty"`
	LoginAt        string `dynamodbav:"LoginAt"`
	LogoutAt       string `dynamodbav:"LogoutAt,omitempty"`
	LoginIP        string `dynamodbav:"LoginIP,omitempty"`
	UserAgent      string `dynamodbav:"UserAgent,omitempty"`
	IsActive       bool   `dynamodbav:"IsActive"`
	InitialStatus  string `dynamodbav:"InitialStatus"`
	LastActivityAt string `dynamodbav:"LastActivityAt"`
	EndedBy        string `dynamodbav:"EndedBy,omitempty"`
	EndReason      string `dynamodbav:"EndReason,omitempty"`
}

type eventRecord struct {
	SessionID  string         `dynamodbav:"SessionID"`
	SortKey    string         `dynamodbav:"SortKey"` // ts#eventID, keeps creation order
	EventID    string         `dynamodbav:"EventID"`
	UserID     string         `dynamodbav:"UserID"`
	EventType  string         `dynamodbav:"EventType"`
	FromStatus string         `dynamodbav:"FromStatus,omitempty"`
	ToStatus   string         `dynamodbav:"ToStatus"`
	TS         string         `dynamodbav:"TS"`
	Meta       map[string]any `dynamodbav:"Meta,omitempty"`
}

type breakRecord struct {
	SessionID     string `dynamodbav:"SessionID"`
	BreakID       string `dynamodbav:"BreakID"`
	UserID        string `dynamodbav:"UserID"`
	BreakReasonID string `dynamodbav:"BreakReasonID,omitempty"`
	StartAt       string `dynamodbav:"StartAt"`
	EndAt         string `dynamodbav:"EndAt"`
	EndedBy       string `dynamodbav:"EndedBy,omitempty"`
}

type heartbeatRecord struct {
	SessionID   string         `dynamodbav:"SessionID"`
	SortKey     string         `dynamodbav:"SortKey"`
	HeartbeatID string         `dynamodbav:"HeartbeatID"`
	UserID      string         `dynamodbav:"UserID"`
	ClientState map[string]any `dynamodbav:"ClientState,omitempty"`
	IP          string         `dynamodbav:"IP,omitempty"`
	TS          string         `dynamodbav:"TS"`
}

type extensionRecord struct {
	UserID    string `dynamodbav:"UserID"`
	Extension string `dynamodbav:"Extension"`
	DID       string `dynamodbav:"DID,omitempty"`
}

func (s *DynamoDBStore) FindActiveSession(ctx context.Context, userID string) (*types.AgentSession, error) {
	keyCond := expression.Key("UserID").Equal(expression.Value(userID))
	filter := expression.Name("IsActive").Equal(expression.Value(true))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.SessionsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query active session: %w", err)
	}

	var records []sessionRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Session IDs are random, so the most recent login must be found by
	// timestamp, not key order.
	latest := records[0]
	for _, r := range records[1:] {
		if r.LoginAt > latest.LoginAt {
			latest = r
		}
	}
	return sessionFromRecord(latest)
}

func (s *DynamoDBStore) CreateSession(ctx context.Context, sess *types.AgentSession) error {
	return s.putSession(ctx, sess)
}

func (s *DynamoDBStore) UpdateSession(ctx context.Context, sess *types.AgentSession) error {
	return s.putSession(ctx, sess)
}

func (s *DynamoDBStore) putSession(ctx context.Context, sess *types.AgentSession) error {
	item, err := attributevalue.MarshalMap(sessionToRecord(sess))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.SessionsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) ListActiveSessions(ctx context.Context) ([]types.AgentSession, error) {
	filter := expression.Name("IsActive").Equal(expression.Value(true))
	return s.scanSessions(ctx, filter)
}

func (s *DynamoDBStore) ListSessionsSince(ctx context.Context, since time.Time) ([]types.AgentSession, error) {
	cutoff := since.UTC().Format(timeFormat)
	filter := expression.Name("LoginAt").GreaterThanEqual(expression.Value(cutoff)).
		Or(expression.Name("IsActive").Equal(expression.Value(true))).
		Or(expression.Name("LogoutAt").GreaterThanEqual(expression.Value(cutoff)))
	return s.scanSessions(ctx, filter)
}

func (s *DynamoDBStore) ListUserSessionsSince(ctx context.Context, userID string, since time.Time) ([]types.AgentSession, error) {
	cutoff := since.UTC().Format(timeFormat)
	keyCond := expression.Key("UserID").Equal(expression.Value(userID))
	filter := expression.Name("LoginAt").GreaterThanEqual(expression.Value(cutoff)).
		Or(expression.Name("IsActive").Equal(expression.Value(true))).
		Or(expression.Name("LogoutAt").GreaterThanEqual(expression.Value(cutoff)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var out []types.AgentSession
	var lastKey map[string]dbtypes.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.SessionsTable),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query user sessions: %w", err)
		}

		sessions, err := sessionsFromItems(result.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, sessions...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return out, nil
}

func (s *DynamoDBStore) scanSessions(ctx context.Context, filter expression.ConditionBuilder) ([]types.AgentSession, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var out []types.AgentSession
	var lastKey map[string]dbtypes.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(s.config.SessionsTable),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}

		sessions, err := sessionsFromItems(result.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, sessions...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return out, nil
}

func (s *DynamoDBStore) AppendEvent(ctx context.Context, e *types.PresenceEvent) error {
	ts := e.TS.UTC().Format(timeFormat)
	record := eventRecord{
		SessionID:  e.SessionID,
		SortKey:    ts + "#" + e.ID,
		EventID:    e.ID,
		UserID:     e.UserID,
		EventType:  string(e.EventType),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		TS:         ts,
		Meta:       e.Meta,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.EventsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to append presence event: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) FindLastStatusEvent(ctx context.Context, sessionID string) (*types.PresenceEvent, error) {
	keyCond := expression.Key("SessionID").Equal(expression.Value(sessionID))
	filter := expression.Name("ToStatus").NotEqual(expression.Value(""))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	// Walk pages newest-first until a status-bearing event appears. The
	// filter runs after the key condition, so a page can come back empty
	// while later pages still hold a match.
	var lastKey map[string]dbtypes.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.EventsTable),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query last status event: %w", err)
		}

		if len(result.Items) > 0 {
			var record eventRecord
			if err := attributevalue.UnmarshalMap(result.Items[0], &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal presence event: %w", err)
			}
			return eventFromRecord(record)
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			return nil, nil
		}
	}
}

func (s *DynamoDBStore) CreateBreak(ctx context.Context, b *types.AgentBreak) error {
	return s.putBreak(ctx, b)
}

func (s *DynamoDBStore) UpdateBreak(ctx context.Context, b *types.AgentBreak) error {
	return s.putBreak(ctx, b)
}

func (s *DynamoDBStore) putBreak(ctx context.Context, b *types.AgentBreak) error {
	record := breakRecord{
		SessionID:     b.SessionID,
		BreakID:       b.ID,
		UserID:        b.UserID,
		BreakReasonID: b.BreakReasonID,
		StartAt:       b.StartAt.UTC().Format(timeFormat),
		EndAt:         fmtTimePtr(b.EndAt),
		EndedBy:       string(b.EndedBy),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal break: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.BreaksTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save break: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) FindOpenBreak(ctx context.Context, sessionID string) (*types.AgentBreak, error) {
	keyCond := expression.Key("SessionID").Equal(expression.Value(sessionID))
	filter := expression.Name("EndAt").Equal(expression.Value(""))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.BreaksTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query open break: %w", err)
	}

	var records []breakRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breaks: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.StartAt > latest.StartAt {
			latest = r
		}
	}
	return breakFromRecord(latest)
}

func (s *DynamoDBStore) AppendHeartbeat(ctx context.Context, hb *types.Heartbeat) error {
	ts := hb.TS.UTC().Format(timeFormat)
	record := heartbeatRecord{
		SessionID:   hb.SessionID,
		SortKey:     ts + "#" + hb.ID,
		HeartbeatID: hb.ID,
		UserID:      hb.UserID,
		ClientState: hb.ClientState,
		IP:          hb.IP,
		TS:          ts,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.HeartbeatsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to append heartbeat: %w", err)
	}
	return nil
}

func (s *DynamoDBStore) FindAgentExtension(ctx context.Context, userID string) (*types.AgentExtension, error) {
	keyCond := expression.Key("UserID").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.ExtensionsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query extension: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var record extensionRecord
	if err := attributevalue.UnmarshalMap(result.Items[0], &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extension: %w", err)
	}
	return &types.AgentExtension{
		UserID:    record.UserID,
		Extension: record.Extension,
		DID:       record.DID,
	}, nil
}

func (s *DynamoDBStore) PutAgentExtension(ctx context.Context, ext *types.AgentExtension) error {
	item, err := attributevalue.MarshalMap(extensionRecord{
		UserID:    ext.UserID,
		Extension: ext.Extension,
		DID:       ext.DID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal extension: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.ExtensionsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save extension: %w", err)
	}
	return nil
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none), using in-memory store")
		return NewMemoryStore(), nil
	}
}

// TruncateAll deletes all items from every table (scan + batch delete)
func (s *DynamoDBStore) TruncateAll(ctx context.Context) error {
	tables := []struct {
		name string
		pk   string
		sk   string
	}{
		{s.config.SessionsTable, "UserID", "SessionID"},
		{s.config.EventsTable, "SessionID", "SortKey"},
		{s.config.BreaksTable, "SessionID", "BreakID"},
		{s.config.HeartbeatsTable, "SessionID", "SortKey"},
		{s.config.ExtensionsTable, "UserID", "Extension"},
	}

	for _, table := range tables {
		if err := s.truncateTable(ctx, table.name, table.pk, table.sk); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table.name, err)
		}
	}
	return nil
}

func (s *DynamoDBStore) truncateTable(ctx context.Context, tableName, pk, sk string) error {
	var lastKey map[string]dbtypes.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(tableName),
			ProjectionExpression: aws.String("#pk, #sk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": pk,
				"#sk": sk,
			},
			Limit: aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return err
		}

		// Batch delete in groups of 25
		for i := 0; i < len(result.Items); i += 25 {
			end := i + 25
			if end > len(result.Items) {
				end = len(result.Items)
			}

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{
							pk: item[pk],
							sk: item[sk],
						},
					},
				})
			}

			_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					tableName: requests,
				},
			})
			if err != nil {
				return err
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	s.logger.Info().Str("table", tableName).Msg("table truncated")
	return nil
}

func sessionToRecord(sess *types.AgentSession) sessionRecord {
	return sessionRecord{
		UserID:         sess.UserID,
		SessionID:      sess.ID,
		Username:       sess.Username,
		LoginAt:        sess.LoginAt.UTC().Format(timeFormat),
		LogoutAt:       fmtTimePtr(sess.LogoutAt),
		LoginIP:        sess.LoginIP,
		UserAgent:      sess.UserAgent,
		IsActive:       sess.IsActive,
		InitialStatus:  string(sess.InitialStatus),
		LastActivityAt: sess.LastActivityAt.UTC().Format(timeFormat),
		EndedBy:        string(sess.EndedBy),
		EndReason:      sess.EndReason,
	}
}

func sessionFromRecord(r sessionRecord) (*types.AgentSession, error) {
	loginAt, err := parseTime(r.LoginAt)
	if err != nil {
		return nil, fmt.Errorf("bad LoginAt on session %s: %w", r.SessionID, err)
	}
	lastActivity, err := parseTime(r.LastActivityAt)
	if err != nil {
		return nil, fmt.Errorf("bad LastActivityAt on session %s: %w", r.SessionID, err)
	}
	logoutAt, err := parseTimePtr(r.LogoutAt)
	if err != nil {
		return nil, fmt.Errorf("bad LogoutAt on session %s: %w", r.SessionID, err)
	}

	return &types.AgentSession{
		ID:             r.SessionID,
		UserID:         r.UserID,
		Username:       r.Username,
		LoginAt:        loginAt,
		LogoutAt:       logoutAt,
		LoginIP:        r.LoginIP,
		UserAgent:      r.UserAgent,
		IsActive:       r.IsActive,
		InitialStatus:  types.AgentStatus(r.InitialStatus),
		LastActivityAt: lastActivity,
		EndedBy:        types.EndedBy(r.EndedBy),
		EndReason:      r.EndReason,
	}, nil
}

func sessionsFromItems(items []map[string]dbtypes.AttributeValue) ([]types.AgentSession, error) {
	var records []sessionRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	out := make([]types.AgentSession, 0, len(records))
	for _, r := range records {
		sess, err := sessionFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}

func eventFromRecord(r eventRecord) (*types.PresenceEvent, error) {
	ts, err := parseTime(r.TS)
	if err != nil {
		return nil, fmt.Errorf("bad TS on event %s: %w", r.EventID, err)
	}
	return &types.PresenceEvent{
		ID:         r.EventID,
		UserID:     r.UserID,
		SessionID:  r.SessionID,
		EventType:  types.EventType(r.EventType),
		FromStatus: types.AgentStatus(r.FromStatus),
		ToStatus:   types.AgentStatus(r.ToStatus),
		TS:         ts,
		Meta:       r.Meta,
	}, nil
}

func breakFromRecord(r breakRecord) (*types.AgentBreak, error) {
	startAt, err := parseTime(r.StartAt)
	if err != nil {
		return nil, fmt.Errorf("bad StartAt on break %s: %w", r.BreakID, err)
	}
	endAt, err := parseTimePtr(r.EndAt)
	if err != nil {
		return nil, fmt.Errorf("bad EndAt on break %s: %w", r.BreakID, err)
	}
	return &types.AgentBreak{
		ID:            r.BreakID,
		UserID:        r.UserID,
		SessionID:     r.SessionID,
		BreakReasonID: r.BreakReasonID,
		StartAt:       startAt,
		EndAt:         endAt,
		EndedBy:       types.EndedBy(r.EndedBy),
	}, nil
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
