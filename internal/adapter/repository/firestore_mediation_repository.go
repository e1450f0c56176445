package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/pkg/errors"
)

type firestoreMediationRepository struct {
	client *firestore.Client
}

func NewFirestoreMediationRepository(client *firestore.Client) repository.MediationRepository {
	return &firestoreMediationRepository{
		client: client,
	}
}

func (r *firestoreMediationRepository) Create(ctx context.Context, mediation *entity.MediationRequest) error {
	if mediation.ID == "" {
		mediation.ID = uuid.New().String()
	}
	if mediation.Version == 0 {
		mediation.Version = 1
	}

	now := time.Now()
	mediation.CreatedAt = now
	mediation.UpdatedAt = now

	_, err := r.client.Collection("mediations").Doc(mediation.ID).Set(ctx, mediation)
	if err != nil {
		return errors.Internal("Failed to create mediation", err)
	}

	return nil
}

func (r *firestoreMediationRepository) GetByID(ctx context.Context, id string) (*entity.MediationRequest, error) {
	doc, err := r.client.Collection("mediations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Mediation", err)
		}
		return nil, errors.Internal("Failed to get mediation", err)
	}

	var mediation entity.MediationRequest
	if err := doc.DataTo(&mediation); err != nil {
		return nil, errors.Internal("Failed to parse mediation data", err)
	}

	return &mediation, nil
}

// UpdateWithVersion commits the aggregate inside a Firestore transaction
// that re-reads the stored version. A mismatch means another command
// committed first and the optimistic lock was lost.
func (r *firestoreMediationRepository) UpdateWithVersion(ctx context.Context, mediation *entity.MediationRequest, expectedVersion int64) error {
	docRef := r.client.Collection("mediations").Doc(mediation.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Mediation", err)
			}
			return errors.Internal("Failed to read mediation", err)
		}

		var stored entity.MediationRequest
		if err := doc.DataTo(&stored); err != nil {
			return errors.Internal("Failed to parse mediation data", err)
		}

		if stored.Version != expectedVersion {
			return errors.VersionConflict("Mediation was modified by another command")
		}

		mediation.Version = expectedVersion + 1
		mediation.UpdatedAt = time.Now()
		return tx.Set(docRef, mediation)
	})
	if err != nil {
		// Roll the in-memory version back so a retry after refetch starts
		// from a consistent aggregate.
		if errors.Is(err, "VERSION_CONFLICT") {
			mediation.Version = expectedVersion
		}
		return err
	}

	return nil
}

func (r *firestoreMediationRepository) ListByStatus(ctx context.Context, st entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	query := r.client.Collection("mediations").
		Where("status", "==", string(st)).
		OrderBy("createdAt", firestore.Desc)

	return r.runListQuery(ctx, query, limit, offset)
}

func (r *firestoreMediationRepository) ListByMediator(ctx context.Context, mediatorID string, statuses []entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	statusStrings := make([]string, 0, len(statuses))
	for _, st := range statuses {
		statusStrings = append(statusStrings, string(st))
	}

	query := r.client.Collection("mediations").
		Where("mediatorId", "==", mediatorID).
		Where("status", "in", statusStrings).
		OrderBy("createdAt", firestore.Desc)

	return r.runListQuery(ctx, query, limit, offset)
}

// ListByParticipant merges the buyer, seller and mediator result sets;
// Firestore has no disjunction across fields.
func (r *firestoreMediationRepository) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	collection := r.client.Collection("mediations")

	seen := make(map[string]bool)
	var merged []*entity.MediationRequest

	for _, field := range []string{"buyerId", "sellerId", "mediatorId"} {
		docs, err := collection.Where(field, "==", userID).Documents(ctx).GetAll()
		if err != nil {
			return nil, 0, errors.Internal("Failed to list mediations", err)
		}

		for _, doc := range docs {
			if seen[doc.Ref.ID] {
				continue
			}
			seen[doc.Ref.ID] = true

			var mediation entity.MediationRequest
			if err := doc.DataTo(&mediation); err != nil {
				return nil, 0, errors.Internal("Failed to parse mediation data", err)
			}
			merged = append(merged, &mediation)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	total := int64(len(merged))
	if offset >= len(merged) {
		return []*entity.MediationRequest{}, total, nil
	}
	merged = merged[offset:]
	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}

	return merged, total, nil
}

func (r *firestoreMediationRepository) SetSubChatSummaries(ctx context.Context, mediationID string, summaries []entity.SubChatSummary) error {
	_, err := r.client.Collection("mediations").Doc(mediationID).Update(ctx, []firestore.Update{
		{Path: "subChats", Value: summaries},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Mediation", err)
		}
		return errors.Internal("Failed to update channel summaries", err)
	}

	return nil
}

func (r *firestoreMediationRepository) CreateLog(ctx context.Context, log *entity.MediationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.client.Collection("mediation_logs").Doc(log.ID).Set(ctx, log)
	if err != nil {
		return errors.Internal("Failed to create mediation log", err)
	}

	return nil
}

func (r *firestoreMediationRepository) ListLogsByMediationID(ctx context.Context, mediationID string) ([]*entity.MediationLog, error) {
	iter := r.client.Collection("mediation_logs").
		Where("mediationId", "==", mediationID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)

	var logs []*entity.MediationLog
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list mediation logs", err)
		}

		var entry entity.MediationLog
		if err := doc.DataTo(&entry); err != nil {
			return nil, errors.Internal("Failed to parse mediation log data", err)
		}
		logs = append(logs, &entry)
	}

	return logs, nil
}

func (r *firestoreMediationRepository) runListQuery(ctx context.Context, query firestore.Query, limit, offset int) ([]*entity.MediationRequest, int64, error) {
	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count mediations", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var mediations []*entity.MediationRequest
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to list mediations", err)
		}

		var mediation entity.MediationRequest
		if err := doc.DataTo(&mediation); err != nil {
			return nil, 0, errors.Internal("Failed to parse mediation data", err)
		}
		mediations = append(mediations, &mediation)
	}

	return mediations, total, nil
}
