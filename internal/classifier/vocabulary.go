package classifier

// Label is one entry of the closed zero-shot vocabulary: the descriptive
// prompt scored against the image and the short name shown to users.
type Label struct {
	Description string
	Name        string
}

// Vocabulary is an ordered, closed set of labels. Declaration order is the
// tie-break order for equal probabilities.
type Vocabulary []Label

// Descriptions returns the prompts in declaration order.
func (v Vocabulary) Descriptions() []string {
	out := make([]string, len(v))
	for i, l := range v {
		out[i] = l.Description
	}
	return out
}

// IndexOf returns the position of a description, or -1.
func (v Vocabulary) IndexOf(description string) int {
	for i, l := range v {
		if l.Description == description {
			return i
		}
	}
	return -1
}

// Descriptive prompts separate food classes far better than bare names.
var DefaultVocabulary = Vocabulary{
	{"a photo of samosa, fried triangular pastry", "samosa"},
	{"a photo of biryani, spiced rice with meat", "biryani"},
	{"a photo of butter chicken, orange creamy curry", "butter chicken"},
	{"a photo of paneer tikka, grilled cottage cheese", "paneer tikka"},
	{"a photo of dosa, thin crispy crepe", "dosa"},
	{"a photo of idli, white steamed rice cakes", "idli"},
	{"a photo of chole bhature, chickpea curry with fried bread", "chole bhature"},
	{"a photo of naan, flatbread", "naan"},
	{"a photo of dal makhani, dark lentil curry", "dal makhani"},
	{"a photo of pav bhaji, vegetable mash with bread rolls", "pav bhaji"},
	{"a photo of vada pav, potato dumpling sandwich", "vada pav"},
	{"a photo of roti chapati, round flatbread", "roti"},
	{"a photo of plain white rice on a plate", "rice"},
	{"a photo of green salad with vegetables", "salad"},
	{"a photo of pizza with cheese and toppings", "pizza"},
	{"a photo of burger with bun and patty", "burger"},
	{"a photo of fried chicken pieces", "fried chicken"},
	{"a photo of egg curry in spicy sauce", "egg curry"},
	{"a photo of fish curry with coconut", "fish curry"},
	{"a photo of vegetable curry", "vegetable curry"},
}
