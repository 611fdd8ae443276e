// Package errors provides structured collab errors with stable codes.
package errors

import "google.golang.org/grpc/codes"

// Kind classifies a failure for callers that branch on outcome rather than
// on the exact code.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidArgument
	KindInvalidOperation
	KindConflict
	KindTransientFailure
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindConflict:
		return "conflict"
	case KindTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Post errors
	CodePostNotFound          Code = "POST_NOT_FOUND"
	CodePostNotOwner          Code = "POST_NOT_OWNER"
	CodePostInvalidKind       Code = "POST_INVALID_KIND"
	CodePostTitleEmpty        Code = "POST_TITLE_EMPTY"
	CodePostTitleTooLong      Code = "POST_TITLE_TOO_LONG"
	CodePostCategoryEmpty     Code = "POST_CATEGORY_EMPTY"
	CodePostDescriptionLong   Code = "POST_DESCRIPTION_TOO_LONG"
	CodePostInvalidTransition Code = "POST_INVALID_TRANSITION"
	CodePostNotActive         Code = "POST_NOT_ACTIVE"
	CodePostInvalidFilter     Code = "POST_INVALID_FILTER"
	CodePostInvalidPageToken  Code = "POST_INVALID_PAGE_TOKEN"

	// Postal code errors
	CodePostalCodeInvalid Code = "POSTAL_CODE_INVALID"
	CodePostalCodeCorrupt Code = "POSTAL_CODE_CORRUPT"

	// Offer errors
	CodeOfferNotFound       Code = "OFFER_NOT_FOUND"
	CodeOfferSelf           Code = "OFFER_SELF"
	CodeOfferDuplicate      Code = "OFFER_DUPLICATE"
	CodeOfferNotPending     Code = "OFFER_NOT_PENDING"
	CodeOfferMessageTooLong Code = "OFFER_MESSAGE_TOO_LONG"

	// Rating errors
	CodeRatingOutOfRange      Code = "RATING_OUT_OF_RANGE"
	CodeRatingSelf            Code = "RATING_SELF"
	CodeRatingDuplicate       Code = "RATING_DUPLICATE"
	CodeRatingNotParticipant  Code = "RATING_NOT_PARTICIPANT"
	CodeRatingWrongTarget     Code = "RATING_WRONG_TARGET"
	CodeRatingCommentTooLong  Code = "RATING_COMMENT_TOO_LONG"
	CodeRatingPostNotEligible Code = "RATING_POST_NOT_ELIGIBLE"

	// Message errors
	CodeMessageEmpty       Code = "MESSAGE_EMPTY"
	CodeMessageTooLong     Code = "MESSAGE_TOO_LONG"
	CodeMessageSelf        Code = "MESSAGE_SELF"
	CodeMessageNoReceiver  Code = "MESSAGE_RECEIVER_NOT_FOUND"
	CodeMessagePostMissing Code = "MESSAGE_POST_NOT_FOUND"

	// User errors
	CodeUserIDEmpty          Code = "USER_ID_EMPTY"
	CodeUserDisplayNameEmpty Code = "USER_DISPLAY_NAME_EMPTY"
	CodeUserNotFound         Code = "USER_NOT_FOUND"

	// Infrastructure errors
	CodeStorageUnavailable      Code = "STORAGE_UNAVAILABLE"
	CodeCipherNotConfigured     Code = "POSTAL_CODE_CIPHER_NOT_CONFIGURED"
	CodeIDGenerationUnavailable Code = "ID_GENERATION_UNAVAILABLE"
)

// Kind maps a code to its failure kind.
func (c Code) Kind() Kind {
	switch c {
	case CodePostNotFound,
		CodeOfferNotFound,
		CodeMessageNoReceiver,
		CodeMessagePostMissing,
		CodeUserNotFound:
		return KindNotFound

	case CodePostNotOwner,
		CodeRatingNotParticipant:
		return KindForbidden

	case CodePostInvalidKind,
		CodePostTitleEmpty,
		CodePostTitleTooLong,
		CodePostCategoryEmpty,
		CodePostDescriptionLong,
		CodePostInvalidFilter,
		CodePostInvalidPageToken,
		CodePostalCodeInvalid,
		CodeOfferMessageTooLong,
		CodeRatingOutOfRange,
		CodeRatingCommentTooLong,
		CodeMessageEmpty,
		CodeMessageTooLong,
		CodeUserIDEmpty,
		CodeUserDisplayNameEmpty:
		return KindInvalidArgument

	case CodePostInvalidTransition,
		CodePostNotActive,
		CodeOfferSelf,
		CodeOfferNotPending,
		CodeRatingSelf,
		CodeRatingWrongTarget,
		CodeRatingPostNotEligible,
		CodeMessageSelf:
		return KindInvalidOperation

	case CodeOfferDuplicate,
		CodeRatingDuplicate:
		return KindConflict

	case CodePostalCodeCorrupt,
		CodeStorageUnavailable,
		CodeCipherNotConfigured,
		CodeIDGenerationUnavailable:
		return KindTransientFailure

	default:
		return KindUnknown
	}
}

// GRPCCode maps codes to gRPC status codes through their kind.
func (c Code) GRPCCode() codes.Code {
	switch c.Kind() {
	case KindNotFound:
		return codes.NotFound
	case KindForbidden:
		return codes.PermissionDenied
	case KindInvalidArgument:
		return codes.InvalidArgument
	case KindInvalidOperation:
		return codes.FailedPrecondition
	case KindConflict:
		return codes.AlreadyExists
	case KindTransientFailure:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
