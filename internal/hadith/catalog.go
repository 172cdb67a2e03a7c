package hadith

// Hadith is one entry of the compiled-in collection.
type Hadith struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

// CatalogSize is the number of hadiths in the collection.
const CatalogSize = 42

// Catalog returns a copy of the collection in id order.
func Catalog() []Hadith {
	out := make([]Hadith, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the hadith with the given id.
func Lookup(id int) (Hadith, bool) {
	if id < 1 || id > len(catalog) {
		return Hadith{}, false
	}
	return catalog[id-1], true
}

// An-Nawawi's forty (with the two closing additions), id = position.
var catalog = []Hadith{
	{1, "Actions are by intentions", "Actions are judged by intentions, and every person will have only what they intended.", "Al-Bukhari and Muslim"},
	{2, "Islam, Iman and Ihsan", "Ihsan is to worship Allah as though you see Him, and if you do not see Him, He surely sees you.", "Muslim"},
	{3, "The pillars of Islam", "Islam is built upon five: the testimony of faith, prayer, zakah, pilgrimage to the House and fasting Ramadan.", "Al-Bukhari and Muslim"},
	{4, "The stages of creation", "The creation of each of you is brought together in his mother's womb, then the angel is sent and decrees are written.", "Al-Bukhari and Muslim"},
	{5, "Rejecting innovations", "Whoever introduces into this affair of ours something that is not from it, it is rejected.", "Al-Bukhari and Muslim"},
	{6, "The lawful and the unlawful", "The lawful is clear and the unlawful is clear, and between them are doubtful matters which many people do not know.", "Al-Bukhari and Muslim"},
	{7, "Religion is sincerity", "The religion is sincere counsel: to Allah, His Book, His Messenger, the leaders of the Muslims and their common folk.", "Muslim"},
	{8, "The sanctity of a Muslim", "I have been commanded to fight people until they testify and establish prayer and pay zakah; then their blood and wealth are protected.", "Al-Bukhari and Muslim"},
	{9, "Do what you are able", "What I have forbidden you, avoid; and what I have commanded you, do as much of it as you are able.", "Al-Bukhari and Muslim"},
	{10, "Earning what is pure", "Allah is pure and accepts only what is pure.", "Muslim"},
	{11, "Leave what makes you doubt", "Leave that which makes you doubt for that which does not make you doubt.", "At-Tirmidhi and An-Nasa'i"},
	{12, "Leaving what does not concern you", "Part of the excellence of a person's Islam is leaving what does not concern him.", "At-Tirmidhi"},
	{13, "Loving for your brother", "None of you truly believes until he loves for his brother what he loves for himself.", "Al-Bukhari and Muslim"},
	{14, "The sanctity of life", "The blood of a Muslim may not be shed except in one of three cases.", "Al-Bukhari and Muslim"},
	{15, "Speak good or keep silent", "Whoever believes in Allah and the Last Day, let him speak good or remain silent, and honour his neighbour and his guest.", "Al-Bukhari and Muslim"},
	{16, "Do not become angry", "A man said: advise me. He said: do not become angry, and repeated it several times.", "Al-Bukhari"},
	{17, "Excellence in everything", "Allah has prescribed excellence in all things.", "Muslim"},
	{18, "Fear Allah wherever you are", "Fear Allah wherever you are, follow a bad deed with a good one to erase it, and treat people with good character.", "At-Tirmidhi"},
	{19, "Be mindful of Allah", "Be mindful of Allah and He will protect you; be mindful of Allah and you will find Him before you.", "At-Tirmidhi"},
	{20, "Modesty", "If you feel no shame, then do as you wish.", "Al-Bukhari"},
	{21, "Say: I believe in Allah", "Say: I believe in Allah, and then be steadfast.", "Muslim"},
	{22, "Entering Paradise", "If I pray the obligatory prayers, fast Ramadan, treat the lawful as lawful and the unlawful as unlawful, will I enter Paradise? He said: yes.", "Muslim"},
	{23, "Purity is half of faith", "Purity is half of faith, and praise be to Allah fills the scale.", "Muslim"},
	{24, "The prohibition of injustice", "O My servants, I have forbidden injustice for Myself and made it forbidden among you, so do not wrong one another.", "Muslim"},
	{25, "Charity in every remembrance", "Every glorification is a charity, every praise is a charity, and enjoining good is a charity.", "Muslim"},
	{26, "Charity of every joint", "Every joint of a person must perform a charity each day the sun rises.", "Al-Bukhari and Muslim"},
	{27, "Righteousness is good character", "Righteousness is good character, and sin is what wavers in your heart and you dislike people finding out about it.", "Muslim"},
	{28, "Holding to the Sunnah", "Hold firmly to my Sunnah and the Sunnah of the rightly guided caliphs after me.", "Abu Dawud and At-Tirmidhi"},
	{29, "The gates of goodness", "Shall I not guide you to the gates of goodness? Fasting is a shield and charity extinguishes sin as water extinguishes fire.", "At-Tirmidhi"},
	{30, "The limits set by Allah", "Allah has laid down obligations, so do not neglect them, and set limits, so do not transgress them.", "Ad-Daraqutni"},
	{31, "True detachment", "Renounce the world and Allah will love you; renounce what people possess and people will love you.", "Ibn Majah"},
	{32, "No harm", "There should be neither harming nor reciprocating harm.", "Ibn Majah and Ad-Daraqutni"},
	{33, "The burden of proof", "The burden of proof is upon the claimant, and the oath upon the one who denies.", "Al-Bayhaqi"},
	{34, "Changing evil", "Whoever among you sees an evil, let him change it with his hand, then his tongue, then his heart.", "Muslim"},
	{35, "Brotherhood", "Do not envy one another, do not hate one another, and be, O servants of Allah, brothers.", "Muslim"},
	{36, "Relieving hardship", "Whoever relieves a believer of a hardship of this world, Allah will relieve him of a hardship on the Day of Resurrection.", "Muslim"},
	{37, "The recording of deeds", "Allah has written down good deeds and bad deeds, and whoever intends a good deed without doing it, a full good deed is written for him.", "Al-Bukhari and Muslim"},
	{38, "Drawing near to Allah", "My servant continues to draw near to Me with voluntary deeds until I love him.", "Al-Bukhari"},
	{39, "Mistakes and forgetfulness", "Allah has pardoned my nation for mistakes, forgetfulness and what they are forced to do.", "Ibn Majah and Al-Bayhaqi"},
	{40, "Be in the world as a stranger", "Be in this world as though you were a stranger or a wayfarer.", "Al-Bukhari"},
	{41, "Following the guidance", "None of you truly believes until his desires follow what I have brought.", "Kitab al-Hujjah"},
	{42, "The vastness of forgiveness", "O son of Adam, as long as you call upon Me and hope in Me, I will forgive you whatever you have done.", "At-Tirmidhi"},
}
