package flow

import (
	"github.com/neurosales/neuroseller-bot/internal/config"
	"github.com/neurosales/neuroseller-bot/internal/recommend"
)

// Event — закрытый набор входящих событий диалога. Машина матчит
// их исчерпывающе, никакой утиной типизации по строкам.
type Event interface{ isEvent() }

// StartAction — команда /start.
type StartAction struct{}

// FreeTextAnswer — обычное текстовое сообщение.
type FreeTextAnswer struct{ Text string }

// SelectTariff — выбор тарифа по индексу из предложения.
type SelectTariff struct{ Index int }

// ViewTariffDetails — просмотр подробностей тарифа по индексу.
type ViewTariffDetails struct{ Index int }

// BackToList — возврат из подробностей к списку тарифов.
type BackToList struct{}

// ContactHuman — запрос связи с менеджером, выход из любого шага.
type ContactHuman struct{}

func (StartAction) isEvent()       {}
func (FreeTextAnswer) isEvent()    {}
func (SelectTariff) isEvent()      {}
func (ViewTariffDetails) isEvent() {}
func (BackToList) isEvent()        {}
func (ContactHuman) isEvent()      {}

type OutcomeKind int

const (
	// OutcomeWelcome — приветствие с кнопкой старта теста.
	OutcomeWelcome OutcomeKind = iota
	// OutcomeQuestion — задать вопрос из Outcome.Question.
	OutcomeQuestion
	// OutcomeProposal — показать список тарифов из Outcome.Proposal.
	OutcomeProposal
	// OutcomeDetails — показать подробности тарифа Outcome.Index.
	OutcomeDetails
	// OutcomeCommitted — тариф выбран и записан (Outcome.Tariff).
	OutcomeCommitted
	// OutcomeUnresolved — подбор не удался, предложить менеджера.
	OutcomeUnresolved
	// OutcomeEscalated — пользователь запросил менеджера.
	OutcomeEscalated
	// OutcomeRejected — событие не подошло текущему шагу, переспросить.
	OutcomeRejected
	// OutcomeExpired — триал закончился, функции ограничены.
	OutcomeExpired
)

// Outcome — результат перехода; бот переводит его в сообщения и клавиатуры.
// Для OutcomeRejected заполнены поля шага, который нужно переспросить.
type Outcome struct {
	Kind     OutcomeKind
	Question *config.Question
	Proposal *recommend.Proposal
	Index    int
	Tariff   *CommittedTariff
}

// CommittedTariff — что именно выбрал пользователь.
type CommittedTariff struct {
	ID    int64
	Name  string
	Price float64
}
