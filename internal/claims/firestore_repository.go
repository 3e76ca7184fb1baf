package claims

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultUsersCollection is the collection that holds UserRecord documents.
const DefaultUsersCollection = "users"

type firestoreRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreRepository creates a UserStore backed by Firestore.
func NewFirestoreRepository(client *firestore.Client, collection string) UserStore {
	if collection == "" {
		collection = DefaultUsersCollection
	}
	return &firestoreRepository{client: client, collection: collection}
}

func (r *firestoreRepository) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(id)
}

func (r *firestoreRepository) GetUser(ctx context.Context, id string) (UserRecord, error) {
	snap, err := r.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	return decodeUser(snap)
}

func (r *firestoreRepository) CreateUser(ctx context.Context, record UserRecord) error {
	data := roleFields(record.Role)
	data["email"] = record.Email
	data["displayName"] = record.DisplayName
	data["claimsUpdated"] = record.ClaimsUpdated
	data["createdAt"] = firestore.ServerTimestamp
	data["updatedAt"] = firestore.ServerTimestamp

	if _, err := r.doc(record.ID).Set(ctx, data); err != nil {
		return fmt.Errorf("create user %s: %w", record.ID, err)
	}
	return nil
}

func (r *firestoreRepository) UpdateRole(ctx context.Context, id string, role Role) error {
	updates := roleUpdates(role)
	updates = append(updates, firestore.Update{Path: "claimsUpdated", Value: true})

	_, err := r.doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update role for %s: %w", id, err)
	}
	return nil
}

// MarkClaimsUpdated reads and writes in one transaction so a late sync cannot
// mark, or rewrite the flags of, a document whose role has since moved on.
func (r *firestoreRepository) MarkClaimsUpdated(ctx context.Context, id string, role Role) error {
	ref := r.doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := decodeUser(snap)
		if err != nil {
			return err
		}
		if current.Role != role {
			return ErrRoleChanged
		}
		return tx.Update(ref, append(flagUpdates(role), firestore.Update{Path: "claimsUpdated", Value: true}))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRoleChanged):
		return ErrRoleChanged
	case status.Code(err) == codes.NotFound:
		return ErrUserNotFound
	default:
		return fmt.Errorf("mark claims updated for %s: %w", id, err)
	}
}

func (r *firestoreRepository) ListUnsynced(ctx context.Context, after string, limit int) ([]UserRecord, error) {
	roles := make([]string, 0, len(AssignableRoles()))
	for _, role := range AssignableRoles() {
		roles = append(roles, string(role))
	}

	query := r.client.Collection(r.collection).
		Where("claimsUpdated", "==", false).
		Where("role", "in", roles).
		OrderBy(firestore.DocumentID, firestore.Asc)
	if after != "" {
		query = query.StartAfter(after)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []UserRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		record, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (UserRecord, error) {
	var record UserRecord
	if err := snap.DataTo(&record); err != nil {
		return UserRecord{}, fmt.Errorf("unmarshal user %s: %w", snap.Ref.ID, err)
	}
	record.ID = snap.Ref.ID
	record.Role = ParseRole(string(record.Role))
	return record, nil
}

// roleFields keeps the derived flags in step with role for full-document writes.
func roleFields(role Role) map[string]any {
	claims := ClaimsForRole(role)
	return map[string]any{
		"role":        string(role),
		"isSubmitter": claims.IsSubmitter,
		"isVerifier":  claims.IsVerifier,
		"isFunder":    claims.IsFunder,
		"isAdmin":     claims.IsAdmin,
	}
}

func roleUpdates(role Role) []firestore.Update {
	return append(flagUpdates(role), firestore.Update{Path: "role", Value: string(role)})
}

// flagUpdates rewrites the derived flags and the timestamp; role itself is left alone.
func flagUpdates(role Role) []firestore.Update {
	claims := ClaimsForRole(role)
	return []firestore.Update{
		{Path: "isSubmitter", Value: claims.IsSubmitter},
		{Path: "isVerifier", Value: claims.IsVerifier},
		{Path: "isFunder", Value: claims.IsFunder},
		{Path: "isAdmin", Value: claims.IsAdmin},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
}
