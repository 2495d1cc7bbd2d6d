package domain

const (
	RequesterIdCtxKey = "web5-requesterId"
	RequesterIdHeader = "web5-requester-did"
)

// DeletedHandlePlaceholder stands in for a handle when the ledger no
// longer holds a document for the address during account deletion.
const DeletedHandlePlaceholder = "deleteHandle"

// FirehoseStream is the redis stream holding the ordered event log.
const FirehoseStream = "web5:firehose"
