package models

import (
	"regexp"
	"time"
)

// Product represents a catalog entry
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	Category    string    `db:"category" json:"category"`
	ImageURL    string    `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Cart is the per-session cart aggregate. A cart is never deleted,
// only emptied.
type Cart struct {
	SessionID string     `db:"session_id" json:"session_id"`
	Total     float64    `db:"total" json:"total"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	Items     []CartItem `db:"-" json:"items"`
}

// CartItem is one cart line. UnitPrice is captured when the line is
// first added and is not re-read from the product afterwards.
type CartItem struct {
	ID        string   `db:"id" json:"id"`
	SessionID string   `db:"session_id" json:"-"`
	ProductID int64    `db:"product_id" json:"product_id"`
	Quantity  int      `db:"quantity" json:"quantity"`
	UnitPrice float64  `db:"unit_price" json:"unit_price"`
	Product   *Product `db:"-" json:"product,omitempty"`
}

// RecomputeTotal enforces the cart invariant total == Σ(price × qty).
// Called before every persist.
func (c *Cart) RecomputeTotal() {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	c.Total = total
}

// Order is an immutable-after-creation snapshot of a checked-out cart.
// Only Status may change after creation.
type Order struct {
	ID             int64       `db:"id" json:"id"`
	OrderNumber    string      `db:"order_number" json:"order_number"`
	CustomerName   string      `db:"customer_name" json:"customer_name"`
	CustomerEmail  string      `db:"customer_email" json:"customer_email"`
	Subtotal       float64     `db:"subtotal" json:"subtotal"`
	Tax            float64     `db:"tax" json:"tax"`
	Total          float64     `db:"total" json:"total"`
	Status         string      `db:"status" json:"status"`
	SessionID      string      `db:"session_id" json:"session_id"`
	IdempotencyKey string      `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
	Items          []OrderItem `db:"-" json:"items"`
}

// OrderItem is a frozen line item. Name and price are denormalized so
// historical orders stay accurate if the product record changes later.
type OrderItem struct {
	ID          int64    `db:"id" json:"id"`
	OrderID     int64    `db:"order_id" json:"order_id"`
	ProductID   int64    `db:"product_id" json:"product_id"`
	ProductName string   `db:"product_name" json:"product_name"`
	Quantity    int      `db:"quantity" json:"quantity"`
	UnitPrice   float64  `db:"unit_price" json:"unit_price"`
	Subtotal    float64  `db:"subtotal" json:"subtotal"`
	Product     *Product `db:"-" json:"product,omitempty"`
}

// Order statuses. Any status may replace any other; there is no
// enforced ordering between them.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// ValidOrderStatus reports whether s is one of the four order statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Role is the closed set of actor roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Capability names an action a role may be allowed to perform.
type Capability string

const (
	CapabilityManageCatalog Capability = "catalog:manage"
)

// Can reports whether the role holds the given capability.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapabilityManageCatalog:
		return r == RoleAdmin
	}
	return false
}

// NormalizeRole maps arbitrary input to a valid role, defaulting to user.
func NormalizeRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// User represents a registered account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidEmail reports whether s has a basic email shape.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
