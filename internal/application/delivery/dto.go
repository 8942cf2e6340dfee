package delivery

import (
	"time"

	"github.com/google/uuid"
	"github.com/groceryshare/backend/internal/domain/delivery"
	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/domain/shared"
)

// CreateRequestInput represents a request to open a delivery request
type CreateRequestInput struct {
	StoreName      string    `json:"store_name" binding:"required,notblank,max=255"`
	PickupAddress  string    `json:"pickup_address" binding:"required,notblank,max=500"`
	OrderName      string    `json:"order_name" binding:"required,notblank,max=255"`
	PickupTime     time.Time `json:"pickup_time" binding:"required"`
	EstimatedItems string    `json:"estimated_items" binding:"max=100"`
}

func (in CreateRequestInput) pickup() delivery.PickupDetails {
	return delivery.PickupDetails{
		StoreName:      in.StoreName,
		PickupAddress:  in.PickupAddress,
		OrderName:      in.OrderName,
		PickupTime:     in.PickupTime,
		EstimatedItems: in.EstimatedItems,
	}
}

// CancelInput carries the optional free-text reason. It is stored on the
// request and never copied into the audit log.
type CancelInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

// PoolQuery filters the open pool listing
type PoolQuery struct {
	Area     string `form:"area" binding:"max=100"`
	Page     int    `form:"page" binding:"min=0"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}

func (q PoolQuery) filter() delivery.PoolFilter {
	return delivery.PoolFilter{
		Filter: shared.Filter{Page: q.Page, PageSize: q.PageSize}.Normalize(),
		Area:   q.Area,
	}
}

// RequestResponse is a participant's view of a request without contact data
type RequestResponse struct {
	ID                 uuid.UUID  `json:"id"`
	RecipientID        uuid.UUID  `json:"recipient_id"`
	Status             string     `json:"status"`
	StoreName          string     `json:"store_name"`
	PickupAddress      string     `json:"pickup_address"`
	OrderName          string     `json:"order_name"`
	PickupTime         time.Time  `json:"pickup_time"`
	EstimatedItems     string     `json:"estimated_items,omitempty"`
	Priority           int        `json:"priority"`
	RequeueCount       int        `json:"requeue_count"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	PickedUpAt         *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CanceledBy         string     `json:"canceled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ToRequestResponse converts the aggregate to a response
func ToRequestResponse(r *delivery.DeliveryRequest) RequestResponse {
	resp := RequestResponse{
		ID:                 r.ID,
		RecipientID:        r.RecipientID,
		Status:             r.Status.String(),
		StoreName:          r.Pickup.StoreName,
		PickupAddress:      r.Pickup.PickupAddress,
		OrderName:          r.Pickup.OrderName,
		PickupTime:         r.Pickup.PickupTime,
		EstimatedItems:     r.Pickup.EstimatedItems,
		Priority:           r.Priority,
		RequeueCount:       r.RequeueCount,
		ClaimedAt:          r.ClaimedAt,
		PickedUpAt:         r.PickedUpAt,
		CompletedAt:        r.CompletedAt,
		CanceledAt:         r.CanceledAt,
		CancellationReason: r.CancellationReason,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.CanceledBy != nil {
		resp.CanceledBy = string(*r.CanceledBy)
	}
	return resp
}

// ToRequestResponses converts a slice of requests
func ToRequestResponses(rs []delivery.DeliveryRequest) []RequestResponse {
	out := make([]RequestResponse, len(rs))
	for i := range rs {
		out[i] = ToRequestResponse(&rs[i])
	}
	return out
}

// PoolItem carries only the listing fields any volunteer may see
type PoolItem struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	StoreName       string    `json:"store_name"`
	PickupTime      time.Time `json:"pickup_time"`
	EstimatedItems  string    `json:"estimated_items,omitempty"`
	GeneralArea     string    `json:"general_area,omitempty"`
	ApproxLatitude  *string   `json:"approx_latitude,omitempty"`
	ApproxLongitude *string   `json:"approx_longitude,omitempty"`
	Priority        int       `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPoolItem(r *delivery.DeliveryRequest, recipient *identity.Recipient) PoolItem {
	item := PoolItem{
		ID:             r.ID,
		Status:         r.Status.String(),
		StoreName:      r.Pickup.StoreName,
		PickupTime:     r.Pickup.PickupTime,
		EstimatedItems: r.Pickup.EstimatedItems,
		Priority:       r.Priority,
		CreatedAt:      r.CreatedAt,
	}
	if recipient != nil {
		item.GeneralArea = recipient.GeneralArea
		if recipient.Location != nil {
			lat := recipient.Location.Latitude.StringFixed(2)
			lng := recipient.Location.Longitude.StringFixed(2)
			item.ApproxLatitude = &lat
			item.ApproxLongitude = &lng
		}
	}
	return item
}

// ContactView is decrypted recipient contact data. It is built per response
// and never cached.
type ContactView struct {
	DisplayAlias string `json:"display_alias"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Purged       bool   `json:"purged,omitempty"`
}

// VolunteerSummary is the volunteer identity shown to the recipient
type VolunteerSummary struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name"`
	PhotoRef        string    `json:"photo_ref,omitempty"`
	TotalDeliveries int       `json:"total_deliveries"`
	RatingCount     int       `json:"rating_count"`
	AverageRating   *string   `json:"average_rating,omitempty"`
}

func toVolunteerSummary(v *identity.Volunteer) *VolunteerSummary {
	s := &VolunteerSummary{
		ID:              v.ID,
		FullName:        v.FullName,
		PhotoRef:        v.PhotoRef,
		TotalDeliveries: v.Stats.TotalDeliveries,
		RatingCount:     v.Stats.RatingCount,
	}
	if v.Stats.AverageRating != nil {
		avg := v.Stats.AverageRating.StringFixed(2)
		s.AverageRating = &avg
	}
	return s
}

// DeliveryView is a request as resolved for one viewer. Exactly one of
// Request and Listing is set, depending on the level.
type DeliveryView struct {
	Level     string            `json:"level"`
	Request   *RequestResponse  `json:"request,omitempty"`
	Listing   *PoolItem         `json:"listing,omitempty"`
	Contact   *ContactView      `json:"contact,omitempty"`
	Volunteer *VolunteerSummary `json:"volunteer,omitempty"`
}

// SendMessageInput represents a chat message
type SendMessageInput struct {
	Body string `json:"body" binding:"required,notblank,max=4000"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID           int64      `json:"id"`
	SenderUserID uuid.UUID  `json:"sender_user_id"`
	SenderRole   string     `json:"sender_role"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}

func toMessageResponse(m *delivery.Message) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		SenderUserID: m.SenderUserID,
		SenderRole:   m.SenderRole.String(),
		Body:         m.Body,
		SentAt:       m.SentAt,
		ReadAt:       m.ReadAt,
	}
}

// MessagePage is one poll result. NextCursor is passed back as "after".
type MessagePage struct {
	Messages            []MessageResponse `json:"messages"`
	NextCursor          int64             `json:"next_cursor"`
	PollIntervalSeconds int               `json:"poll_interval_seconds"`
}

// RatingInput represents a rating submission
type RatingInput struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

// RatingResponse represents a rating in API responses
type RatingResponse struct {
	ID          uuid.UUID `json:"id"`
	DeliveryID  uuid.UUID `json:"delivery_id"`
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toRatingResponse(r *delivery.Rating) RatingResponse {
	return RatingResponse{
		ID:          r.ID,
		DeliveryID:  r.DeliveryID,
		VolunteerID: r.VolunteerID,
		Score:       r.Score,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}
