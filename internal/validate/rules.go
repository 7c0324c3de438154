package validate

import (
	"fmt"
	"strings"

	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/models"
)

// CheckConsensus runs every quality rule against one task's consensus data
// and returns the accumulated errors. Rules are data-driven: a rule only
// fires when the fields it governs are present.
func CheckConsensus(disc *models.Discussion, taskID int, data map[string]interface{}) []faults.ValidationError {
	var errs []faults.ValidationError
	errs = append(errs, checkDownloadURLs(disc.ID, taskID, data)...)
	errs = append(errs, checkImageLinks(disc, taskID, data)...)
	errs = append(errs, checkForms(disc.ID, taskID, data)...)
	return errs
}

// checkDownloadURLs validates every *DownloadUrl* field against the archive
// link pattern. Literal "Not Needed"/"Needed" placeholders are exempt.
func checkDownloadURLs(discussionID string, taskID int, data map[string]interface{}) []faults.ValidationError {
	var errs []faults.ValidationError
	for k, v := range data {
		if !strings.Contains(strings.ToLower(k), "downloadurl") {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isSentinel(s) {
			continue
		}
		if !downloadURLPattern.MatchString(s) {
			errs = append(errs, faults.ValidationError{
				DiscussionID: discussionID,
				Task:         taskID,
				Field:        fieldName(k),
				Message:      "must be an https URL ending in .zip or .tar.gz",
				Value:        s,
			})
		}
	}
	return errs
}

// checkImageLinks enforces consistency between images embedded in the
// original question text and the consensus image-links declaration.
func checkImageLinks(disc *models.Discussion, taskID int, data map[string]interface{}) []faults.ValidationError {
	opt, ok := data["question_image_links_option"]
	if !ok {
		return nil
	}

	embedded := ExtractImageURLs(disc.QuestionBody)
	option := normalizeOption(opt)

	if option == normalizeOption(SentinelNotNeeded) {
		if len(embedded) > 0 {
			return []faults.ValidationError{{
				DiscussionID: disc.ID,
				Task:         taskID,
				Field:        "questionImageLinks",
				Message:      fmt.Sprintf("question embeds %d image(s) but image links are declared not needed", len(embedded)),
				Value:        opt,
			}}
		}
		return nil
	}

	if option != normalizeOption(SentinelNeeded) {
		return nil
	}

	declared := stringList(data["question_image_links"])
	if len(declared) == 0 {
		return []faults.ValidationError{{
			DiscussionID: disc.ID,
			Task:         taskID,
			Field:        "questionImageLinks",
			Message:      "image links declared needed but none provided",
		}}
	}

	declaredSet := make(map[string]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}
	var errs []faults.ValidationError
	for _, url := range embedded {
		if !declaredSet[url] {
			errs = append(errs, faults.ValidationError{
				DiscussionID: disc.ID,
				Task:         taskID,
				Field:        "questionImageLinks",
				Message:      "embedded image URL missing from declared links",
				Value:        url,
			})
		}
	}
	return errs
}

// checkForms runs the per-form rules: supporting-document consistency, the
// weight-3 short-answer requirement, and short/long answer list alignment.
// Forms whose supporting-docs option is "Not Findable" are exempt entirely.
func checkForms(discussionID string, taskID int, data map[string]interface{}) []faults.ValidationError {
	var errs []faults.ValidationError
	for i, form := range collectForms(data) {
		option := normalizeOption(form["supporting_docs_option"])
		if option == normalizeOption(OptionNotFindable) {
			continue
		}

		if option == normalizeOption(OptionProvided) {
			docs, _ := form["supporting_docs"].([]interface{})
			if len(docs) == 0 {
				errs = append(errs, faults.ValidationError{
					DiscussionID: discussionID,
					Task:         taskID,
					Field:        formField(i, "supportingDocs"),
					Message:      "supporting docs declared provided but none attached",
				})
			}
			for _, d := range docs {
				link := docLink(d)
				if !strings.HasPrefix(link, SupportingDocPrefix) {
					errs = append(errs, faults.ValidationError{
						DiscussionID: discussionID,
						Task:         taskID,
						Field:        formField(i, "supportingDocs"),
						Message:      fmt.Sprintf("supporting document link must start with %s", SupportingDocPrefix),
						Value:        link,
					})
				}
			}
		}

		short, hasShort := form["short_answers"].([]interface{})
		if hasShort {
			found := false
			for _, a := range short {
				entry, ok := a.(map[string]interface{})
				if !ok {
					continue
				}
				if weightIsThree(entry["weight"]) {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, faults.ValidationError{
					DiscussionID: discussionID,
					Task:         taskID,
					Field:        formField(i, "shortAnswers"),
					Message:      "at least one short answer must have weight 3",
				})
			}
		}

		long, hasLong := form["long_answers"].([]interface{})
		if hasShort && hasLong && len(short) != len(long) {
			errs = append(errs, faults.ValidationError{
				DiscussionID: discussionID,
				Task:         taskID,
				Field:        formField(i, "answers"),
				Message:      fmt.Sprintf("short answers (%d) and long answers (%d) must align", len(short), len(long)),
			})
		}
	}
	return errs
}
