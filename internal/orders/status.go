package orders

type Status string

const (
	StatusNew        Status = "new"
	StatusPaid       Status = "paid"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
)

var validNext = map[Status]map[Status]bool{
	StatusNew:        {StatusPaid: true, StatusCanceled: true},
	StatusPaid:       {StatusReady: true, StatusCanceled: true},
	StatusReady:      {StatusDelivering: true},
	StatusDelivering: {StatusDelivered: true},
	StatusDelivered:  {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCanceled:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Cancelable lists the states an order may be canceled from: before any
// stock has been consumed for it.
func Cancelable(s Status) bool { return CanTransition(s, StatusCanceled) }

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := validNext[st]
	return st, ok
}

type PaymentStatus string

const (
	PaymentNew        PaymentStatus = "new"
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccess    PaymentStatus = "success"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCard PaymentMethod = "card"
	MethodCash PaymentMethod = "cash"
)
