package ai

import "fmt"

// The extraction prompt is fixed. It teaches the model the two line shapes
// found in evaluation reports and pins the output to a bare JSON array of
// row objects, item fields explicitly null on dimension rows.
const extractionPromptTemplate = `Analyze the provided evaluation report document.
Your task is to extract the structured dimension and item data.
The format is:
- Lines beginning with a dimension marker such as "Dimension X:" open a new section. Extract the dimension number, the full title, and the mean score at the end of the line.
- The following lines contain items, identified by dotted numeric codes such as "1.1.", "2.5.", "3.12.". For each item, extract the code, the full descriptive text, and the score at the end of the line.
- Ignore any other introductory text, headers, footers, or content that does not match this format.
- The original file name is: %s.

Return the result EXCLUSIVELY as a valid JSON array of objects, with no extra text, comments, or formatting (such as ` + "```json" + ` fences).
Each object in the array must have this structure:
{
  "pdf": "%s",
  "dimension_number": 1,
  "dimension_title": "THE DIMENSION TITLE",
  "dimension_mean": 4.5,
  "item_code": "1.1",
  "item_text": "THE FULL ITEM TEXT.",
  "item_score": 5.0
}
For rows that represent a dimension itself, the fields "item_code", "item_text" and "item_score" must be null.`

// BuildExtractionPrompt renders the fixed extraction prompt for a file.
func BuildExtractionPrompt(fileName string) string {
	return fmt.Sprintf(extractionPromptTemplate, fileName, fileName)
}
