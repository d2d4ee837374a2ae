package vector

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

// Payload keys stored with each point. vector_id carries the original string
// id because qdrant point ids must be UUIDs.
const (
	payloadVectorID    = "vector_id"
	payloadLawID       = "law_id"
	payloadArticleNo   = "article_no"
	payloadDepartment  = "department"
	payloadLawType     = "law_type"
	payloadStatus      = "status"
	payloadEnforceDate = "enforce_date"
)

// QdrantStore is the networked vector backend. Equality filters are pushed
// down as qdrant payload conditions; the enforce-date range is applied
// post-query because the payload stores dates as keyword strings.
type QdrantStore struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
	dims       int
	count      atomic.Int64
}

// NewQdrantStore connects to a qdrant instance over gRPC.
func NewQdrantStore(ctx context.Context, addr, collection string, dims int) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "qdrant connect", err)
	}
	s := &QdrantStore{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
		dims:       dims,
	}
	return s, nil
}

// pointID derives a stable qdrant UUID from the string vector id.
func pointID(id string) *pb.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

func (s *QdrantStore) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	if len(vec) != s.dims {
		return lserr.New(lserr.ErrCodeVectorBackend, "upsert failed",
			ErrDimensionMismatch{Expected: s.dims, Got: len(vec)})
	}

	payload := map[string]*pb.Value{
		payloadVectorID:    {Kind: &pb.Value_StringValue{StringValue: id}},
		payloadLawID:       {Kind: &pb.Value_StringValue{StringValue: meta.LawID}},
		payloadArticleNo:   {Kind: &pb.Value_StringValue{StringValue: meta.ArticleNo}},
		payloadDepartment:  {Kind: &pb.Value_StringValue{StringValue: meta.Department}},
		payloadLawType:     {Kind: &pb.Value_StringValue{StringValue: meta.LawType}},
		payloadStatus:      {Kind: &pb.Value_StringValue{StringValue: meta.Status}},
		payloadEnforceDate: {Kind: &pb.Value_StringValue{StringValue: meta.EnforceDate}},
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points: []*pb.PointStruct{{
			Id:      pointID(id),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "qdrant upsert", err)
	}
	s.count.Add(1)
	return nil
}

// buildFilter translates equality conditions into a qdrant payload filter.
func buildFilter(f store.Filter) *pb.Filter {
	var must []*pb.Condition
	keyword := func(key, value string) {
		if value == "" {
			return
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			}},
		})
	}
	keyword(payloadLawID, f.LawID)
	keyword(payloadDepartment, f.Department)
	keyword(payloadLawType, f.LawType)
	keyword(payloadStatus, f.Status)

	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func (s *QdrantStore) Query(ctx context.Context, vec []float32, topK int, filter store.Filter) ([]Result, error) {
	if len(vec) != s.dims {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "query failed",
			ErrDimensionMismatch{Expected: s.dims, Got: len(vec)})
	}
	if topK <= 0 {
		return []Result{}, nil
	}

	limit := uint64(topK)
	if filter.EnforceFrom != "" || filter.EnforceTo != "" {
		limit = uint64(topK * filterOverfetch)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          limit,
		Filter:         buildFilter(filter),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "qdrant search", err)
	}

	results := make([]Result, 0, len(resp.Result))
	for _, pt := range resp.Result {
		meta := Metadata{
			LawID:       pt.Payload[payloadLawID].GetStringValue(),
			ArticleNo:   pt.Payload[payloadArticleNo].GetStringValue(),
			Department:  pt.Payload[payloadDepartment].GetStringValue(),
			LawType:     pt.Payload[payloadLawType].GetStringValue(),
			Status:      pt.Payload[payloadStatus].GetStringValue(),
			EnforceDate: pt.Payload[payloadEnforceDate].GetStringValue(),
		}
		if !meta.Matches(filter) {
			continue
		}
		// Qdrant reports cosine similarity in [-1,1]; map to [0,1] the same
		// way the in-memory backend does.
		score := (float64(pt.Score) + 1.0) / 2.0
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, Result{
			ID:       pt.Payload[payloadVectorID].GetStringValue(),
			Score:    score,
			Metadata: meta,
		})
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "qdrant delete", err)
	}
	return nil
}

// Count returns the number of points upserted through this client. The
// authoritative count lives server-side; this is a local approximation used
// for logging only.
func (s *QdrantStore) Count() int {
	return int(s.count.Load())
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

var _ Store = (*QdrantStore)(nil)
