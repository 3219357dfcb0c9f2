package llm

import (
	"fmt"
	"time"
)

const rubricPrompt = `You are an analyst for an automotive home-service business.
Read the customer support conversation below and extract the following fields.
Use the empty string for anything the conversation does not establish.

- service_category: the service the customer is asking about (e.g. PMS, car buying assistance, diagnosis, repair)
- summary: two or three sentences summarizing the conversation
- intent_rating: how strong the customer's intent to book is (low, medium, high)
- engagement_rating: 1-5, how engaged the customer is
- clarity_rating: 1-5, how clear the customer's request is
- resolution_rating: 1-5, how fully the agent resolved the request
- sentiment_rating: overall customer sentiment (negative, neutral, positive)
- location: the service address the customer gave, as free text
- schedule_date: requested date (YYYY-MM-DD) relative to today, %s
- schedule_time: requested time of day
- car: the vehicle described (year, make, model, variant if stated)
- contact_num: the customer's contact number
- payment: how the customer intends to pay
- inspection: any inspection findings discussed
- quotation: any quotation or pricing discussed

Conversation:
%s`

// BuildPrompt renders the fixed rubric for one transcript.
func BuildPrompt(transcript string, today time.Time) string {
	return fmt.Sprintf(rubricPrompt, today.Format("2006-01-02"), transcript)
}
