/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package grabthemic

// defaultWords are short words that show up in a lot of song lyrics.
var defaultWords = [...]string{
	"Love", "Baby", "Yeah", "Night", "Heart",
	"Time", "Life", "World", "Sun", "Moon",
	"Stars", "Dance", "Music", "Song", "Sing",
	"Forever", "Dream", "Hold", "Kiss", "Miss",
	"Fire", "Rain", "Sky", "Blue", "Eyes",
	"Hand", "Crazy", "Alone", "Home", "Stay",
	"Run", "Walk", "Stop", "Go", "Hello",
	"Goodbye", "Sorry", "Please", "Thank", "You",
	"Me", "We", "Us", "Them", "One",
	"Two", "Three", "Four", "Five", "Six",
	"Seven", "Eight", "Nine", "Ten", "Again",
	"Never", "Always", "Want", "Need", "Feel",
	"Know", "See", "Hear", "Speak", "Think",
	"Believe", "Hope", "Wish", "Pray", "Light",
	"Dark", "Day", "Way", "Road", "Street",
	"City", "Town", "River", "Ocean", "Sea",
	"Mountain", "Valley", "Field", "Tree", "Flower",
	"Air", "Wind", "Water", "Earth", "Soul",
	"Mind", "Body", "Spirit", "Angel", "Devil",
}

// WordList is an immutable, ordered list of words.
type WordList struct {
	words []string
}

// NewWordList copies words into a new list.
func NewWordList(words []string) WordList {
	return WordList{words: append([]string(nil), words...)}
}

// DefaultWordList returns the built-in song word list.
func DefaultWordList() WordList {
	return NewWordList(defaultWords[:])
}

func (w WordList) Len() int {
	return len(w.words)
}

func (w WordList) At(i int) string {
	return w.words[i]
}

// Words returns a copy of the list.
func (w WordList) Words() []string {
	return append([]string(nil), w.words...)
}
