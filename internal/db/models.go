package db

type User struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Username  string `gorm:"column:username;not null;uniqueIndex"`
	Email     string `gorm:"column:email;not null;default:''"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
}

func (User) TableName() string { return "users" }

type Status struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string `gorm:"column:title;not null;uniqueIndex"`
	Description string `gorm:"column:description;not null;default:''"`
	CreatedBy   int64  `gorm:"column:created_by;not null;default:0"`
	CreatedAt   int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt   int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Status) TableName() string { return "statuses" }

type Category struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedBy   int64  `gorm:"column:created_by;not null;uniqueIndex:idx_categories_owner_name,priority:1"`
	Name        string `gorm:"column:name;not null;uniqueIndex:idx_categories_owner_name,priority:2"`
	Description string `gorm:"column:description;not null;default:''"`
	ColorHex    string `gorm:"column:color_hex;not null;default:'6B7280'"`
	CreatedAt   int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt   int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Category) TableName() string { return "categories" }

type Tag struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedBy   int64  `gorm:"column:created_by;not null;uniqueIndex:idx_tags_owner_name,priority:1"`
	Name        string `gorm:"column:name;not null;uniqueIndex:idx_tags_owner_name,priority:2"`
	Description string `gorm:"column:description;not null;default:''"`
	ColorHex    string `gorm:"column:color_hex;not null;default:'9CA3AF'"`
	CreatedAt   int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt   int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Tag) TableName() string { return "tags" }

// Task timestamps are unix seconds (UTC). DueDate is required by the schema.
type Task struct {
	ID              int64  `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedBy       int64  `gorm:"column:created_by;not null;index"`
	Title           string `gorm:"column:title;not null"`
	Description     string `gorm:"column:description;not null;default:''"`
	Notes           string `gorm:"column:notes;not null;default:''"`
	CategoryID      *int64 `gorm:"column:category_id"`
	StatusID        int64  `gorm:"column:status_id;not null"`
	Done            bool   `gorm:"column:done;not null;default:false"`
	Archived        bool   `gorm:"column:archived;not null;default:false"`
	Priority        bool   `gorm:"column:priority;not null;default:false"`
	EstimateMinutes *int   `gorm:"column:estimate_minutes"`
	SortOrder       int    `gorm:"column:sort_order;not null;default:0"`
	DueDate         int64  `gorm:"column:due_date;not null"`
	ClosedOn        int64  `gorm:"column:closed_on;not null;default:0"`
	CreatedAt       int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt       int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Task) TableName() string { return "tasks" }

type TaskTag struct {
	TaskID int64 `gorm:"column:task_id;primaryKey"`
	TagID  int64 `gorm:"column:tag_id;primaryKey"`
}

func (TaskTag) TableName() string { return "task_tags" }

type Conversation struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64  `gorm:"column:user_id;not null;index"`
	Title     string `gorm:"column:title;not null;default:''"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ConversationID int64  `gorm:"column:conversation_id;not null;index"`
	Role           string `gorm:"column:role;not null;default:''"`
	Content        string `gorm:"column:content;not null;default:''"`
	CreatedAt      int64  `gorm:"column:created_at;not null;default:0"`
}

func (Message) TableName() string { return "messages" }

type UserSettings struct {
	UserID    int64  `gorm:"column:user_id;primaryKey"`
	AIAPIURL  string `gorm:"column:ai_api_url;not null;default:''"`
	AIAPIKey  string `gorm:"column:ai_api_key;not null;default:''"`
	AIModel   string `gorm:"column:ai_model;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (UserSettings) TableName() string { return "user_settings" }
